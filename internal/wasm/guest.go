package wasm

import (
	"context"
	"errors"
	"fmt"
)

// maxOutCap bounds how far a response buffer may grow.
const maxOutCap = 16 << 20

// abi is the raw call surface of an instantiated guest.
type abi interface {
	alloc(ctx context.Context, size uint32) (uint32, error)
	dealloc(ctx context.Context, ptr, size uint32) error
	read(ptr, size uint32) ([]byte, bool)
	write(ptr uint32, data []byte) bool
	call(ctx context.Context, fn string, inPtr, inLen, outPtr, outCap uint32) (int32, error)
}

// guest moves request and response bytes across the sandbox boundary.
type guest struct {
	abi    abi
	outCap uint32
}

// invoke sends in to fn and returns the response. Idempotent calls are repeated
// once with the size the guest asked for when the response did not fit.
func (g *guest) invoke(ctx context.Context, fn string, in []byte, idempotent bool) ([]byte, error) {
	for retried := false; ; retried = true {
		out, need, err := g.once(ctx, fn, in)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}

		if !idempotent || retried {
			return nil, fmt.Errorf("%w: %s needs %d bytes, buffer holds %d", ErrBufferTooSmall, fn, need, g.outCap)
		}
		if need > maxOutCap {
			return nil, fmt.Errorf("%w: %s needs %d bytes, limit is %d", ErrBufferTooSmall, fn, need, maxOutCap)
		}
		g.outCap = need
	}
}

// once performs a single call. A nil response with a nil error means the
// guest needs need bytes.
func (g *guest) once(ctx context.Context, fn string, in []byte) (out []byte, need uint32, err error) {
	var inPtr uint32
	inLen := uint32(len(in))
	if inLen > 0 {
		inPtr, err = g.abi.alloc(ctx, inLen)
		if err != nil {
			return nil, 0, err
		}
		defer func() {
			err = errors.Join(err, g.abi.dealloc(ctx, inPtr, inLen))
		}()
		if !g.abi.write(inPtr, in) {
			return nil, 0, fmt.Errorf("writing %d request bytes at %d: out of range", inLen, inPtr)
		}
	}

	outCap := g.outCap
	outPtr, err := g.abi.alloc(ctx, outCap)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		err = errors.Join(err, g.abi.dealloc(ctx, outPtr, outCap))
	}()

	n, err := g.abi.call(ctx, fn, inPtr, inLen, outPtr, outCap)
	if err != nil {
		return nil, 0, err
	}
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %s returned %d", ErrGuest, fn, n)
	}
	if uint32(n) > outCap {
		return nil, uint32(n), nil
	}

	view, ok := g.abi.read(outPtr, uint32(n))
	if !ok {
		return nil, 0, fmt.Errorf("reading %d response bytes at %d: out of range", n, outPtr)
	}
	out = make([]byte, n)
	copy(out, view)
	return out, 0, nil
}
