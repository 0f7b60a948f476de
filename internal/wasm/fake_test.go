package wasm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shamaton/msgpack/v2"
)

// arena is an in-process abi backed by a byte slice and a bump allocator.
type arena struct {
	mem      []byte
	next     uint32
	live     map[uint32]uint32
	handlers map[string]func(in []byte) ([]byte, int32)
	calls    map[string]int
}

func newArena() *arena {
	return &arena{
		mem:      make([]byte, 1<<20),
		next:     8,
		live:     make(map[uint32]uint32),
		handlers: make(map[string]func([]byte) ([]byte, int32)),
		calls:    make(map[string]int),
	}
}

func (a *arena) alloc(ctx context.Context, size uint32) (uint32, error) {
	if int(a.next)+int(size) > len(a.mem) {
		return 0, fmt.Errorf("arena exhausted")
	}
	ptr := a.next
	a.next += size
	a.live[ptr] = size
	return ptr, nil
}

func (a *arena) dealloc(ctx context.Context, ptr, size uint32) error {
	if a.live[ptr] != size {
		return fmt.Errorf("dealloc of unknown block %d/%d", ptr, size)
	}
	delete(a.live, ptr)
	return nil
}

func (a *arena) read(ptr, size uint32) ([]byte, bool) {
	if int(ptr)+int(size) > len(a.mem) {
		return nil, false
	}
	return a.mem[ptr : ptr+size], true
}

func (a *arena) write(ptr uint32, data []byte) bool {
	if int(ptr)+len(data) > len(a.mem) {
		return false
	}
	copy(a.mem[ptr:], data)
	return true
}

func (a *arena) call(ctx context.Context, fn string, inPtr, inLen, outPtr, outCap uint32) (int32, error) {
	a.calls[fn]++
	h, ok := a.handlers[fn]
	if !ok {
		return 0, fmt.Errorf("no handler for %s", fn)
	}
	in, _ := a.read(inPtr, inLen)
	out, code := h(in)
	if code < 0 {
		return code, nil
	}
	if uint32(len(out)) > outCap {
		return int32(len(out)), nil
	}
	copy(a.mem[outPtr:], out)
	return int32(len(out)), nil
}

// gainGuest is a tiny model: y = k * in, n counts steps.
type gainGuest struct {
	k, in, y float64
	flag     bool
	n        int32
	t        float64
	status   int32
}

func gainDescription() wireDescription {
	return wireDescription{
		ID:             "{gain}",
		Name:           "gain",
		Description:    "scales its input",
		GenerationTool: "handwritten",
		Capabilities:   wireCapabilities{CanHandleVariableStepSize: true},
		Variables: []wireVariable{
			{ID: 0, Name: "k", Kind: "real", Causality: "parameter"},
			{ID: 1, Name: "in", Kind: "real", Causality: "input"},
			{ID: 2, Name: "flag", Kind: "bool", Causality: "input"},
			{ID: 3, Name: "y", Kind: "real", Causality: "output"},
			{ID: 4, Name: "n", Kind: "int", Causality: "local"},
		},
		Defaults: wireValues{
			Real: map[int32]float64{0: 1.5, 1: 0.25},
			Bool: map[int32]bool{2: true},
		},
	}
}

func mustMarshal(v any) []byte {
	b, err := msgpack.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func (g *gainGuest) install(a *arena, desc wireDescription) {
	a.handlers[exportDescribe] = func([]byte) ([]byte, int32) {
		return mustMarshal(desc), 0
	}
	a.handlers[exportInit] = func(in []byte) ([]byte, int32) {
		var req wireInit
		if err := msgpack.Unmarshal(in, &req); err != nil {
			return nil, -1
		}
		g.k = req.Values.Real[0]
		g.in = req.Values.Real[1]
		g.flag = req.Values.Bool[2]
		g.t = req.StartTime
		g.y = g.k * g.in
		return mustMarshal(wireStatus{Status: g.status}), 0
	}
	a.handlers[exportStep] = func(in []byte) ([]byte, int32) {
		var req wireStep
		if err := msgpack.Unmarshal(in, &req); err != nil {
			return nil, -1
		}
		g.t = req.CurrentTime + req.Step
		g.y = g.k * g.in
		g.n++
		return mustMarshal(wireStepResult{Status: g.status, CurrentTime: g.t}), 0
	}
	a.handlers[exportGet] = func(in []byte) ([]byte, int32) {
		var req wireGet
		if err := msgpack.Unmarshal(in, &req); err != nil {
			return nil, -1
		}
		res := wireGetResult{CurrentTime: g.t, Values: wireValues{
			Real: map[int32]float64{}, Int: map[int32]int32{}, Bool: map[int32]bool{}, Text: map[int32]string{},
		}}
		for _, id := range req.IDs {
			switch id {
			case 0:
				res.Values.Real[0] = g.k
			case 1:
				res.Values.Real[1] = g.in
			case 2:
				res.Values.Bool[2] = g.flag
			case 3:
				res.Values.Real[3] = g.y
			case 4:
				res.Values.Int[4] = g.n
			}
		}
		return mustMarshal(res), 0
	}
	a.handlers[exportSet] = func(in []byte) ([]byte, int32) {
		var req wireSet
		if err := msgpack.Unmarshal(in, &req); err != nil {
			return nil, -1
		}
		if v, ok := req.Values.Real[1]; ok {
			g.in = v
		}
		if v, ok := req.Values.Bool[2]; ok {
			g.flag = v
		}
		return mustMarshal(wireStatus{Status: g.status}), 0
	}
}

func newGainModel(outCap uint32) (*Model, *arena, *gainGuest) {
	a := newArena()
	g := &gainGuest{}
	g.install(a, gainDescription())
	return newModel(&guest{abi: a, outCap: outCap}, zerolog.Nop()), a, g
}
