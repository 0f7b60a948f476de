package wasm

// cannedGuest assembles a small guest module that answers each call export with
// a fixed reply kept in a data segment. A call without a reply returns -1.
// _initialize moves the heap pointer past the data, so alloc only works once
// the start function has run.
type cannedGuest struct {
	replies map[string][]byte
	// voidAlloc declares alloc without its result.
	voidAlloc bool
}

const (
	dataBase = 1024
	heapBase = 32 << 10
)

var callOrder = []string{exportDescribe, exportInit, exportGet, exportSet, exportStep}

// Value and instruction encodings used below.
const (
	typeI32  = 0x7f
	typeFunc = 0x60

	opEnd       = 0x0b
	opReturn    = 0x0f
	opIf        = 0x04
	opBlockVoid = 0x40
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Const  = 0x41
	opI32LtU    = 0x49
	opI32Add    = 0x6a
	opPrefixFC  = 0xfc
	opMemCopy   = 0x0a
)

func (g cannedGuest) binary() []byte {
	types := [][]byte{
		{typeFunc, 0, 0},
		{typeFunc, 1, typeI32, 1, typeI32},
		{typeFunc, 2, typeI32, typeI32, 0},
		{typeFunc, 4, typeI32, typeI32, typeI32, typeI32, 1, typeI32},
	}
	const tInit, tAlloc, tDealloc, tCall = 0, 1, 2, 3

	allocType := byte(tAlloc)
	allocBody := []byte{opGlobalGet, 0, opGlobalGet, 0, opLocalGet, 0, opI32Add, opGlobalSet, 0}
	if g.voidAlloc {
		allocType, allocBody = tDealloc, nil
	}

	funcs := []byte{tInit, allocType, tDealloc}
	bodies := [][]byte{
		append(append([]byte{opI32Const}, sleb(heapBase)...), opGlobalSet, 0),
		allocBody,
		nil,
	}
	exports := [][]byte{
		export("memory", 0x02, 0),
		export("_initialize", 0x00, 0),
		export(exportAlloc, 0x00, 1),
		export(exportDealloc, 0x00, 2),
	}

	var segments [][]byte
	off := int32(dataBase)
	for i, name := range callOrder {
		funcs = append(funcs, tCall)
		exports = append(exports, export(name, 0x00, uint32(3+i)))

		reply, ok := g.replies[name]
		if !ok {
			bodies = append(bodies, append([]byte{opI32Const}, sleb(-1)...))
			continue
		}
		bodies = append(bodies, copyReply(off, int32(len(reply))))
		seg := append([]byte{0x00, opI32Const}, sleb(off)...)
		seg = append(seg, opEnd)
		seg = append(seg, uleb(uint32(len(reply)))...)
		segments = append(segments, append(seg, reply...))
		off += int32(len(reply))
	}
	if off > heapBase {
		panic("canned replies overlap the heap")
	}

	code := make([][]byte, len(bodies))
	for i, b := range bodies {
		fn := append([]byte{0}, b...)
		fn = append(fn, opEnd)
		code[i] = append(uleb(uint32(len(fn))), fn...)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, vec(types))...)
	out = append(out, section(3, append(uleb(uint32(len(funcs))), funcs...))...)
	out = append(out, section(5, vec([][]byte{{0x00, 4}}))...)
	out = append(out, section(6, vec([][]byte{{typeI32, 1, opI32Const, 0, opEnd}}))...)
	out = append(out, section(7, vec(exports))...)
	out = append(out, section(10, vec(code))...)
	out = append(out, section(11, vec(segments))...)
	return out
}

// copyReply returns n when outCap < n, else copies the n reply bytes at off
// to outPtr and returns n.
func copyReply(off, n int32) []byte {
	size := sleb(n)
	b := []byte{opLocalGet, 3, opI32Const}
	b = append(b, size...)
	b = append(b, opI32LtU, opIf, opBlockVoid, opI32Const)
	b = append(b, size...)
	b = append(b, opReturn, opEnd, opLocalGet, 2, opI32Const)
	b = append(b, sleb(off)...)
	b = append(b, opI32Const)
	b = append(b, size...)
	b = append(b, opPrefixFC, opMemCopy, 0, 0, opI32Const)
	return append(b, size...)
}

func export(name string, kind byte, index uint32) []byte {
	b := append(uleb(uint32(len(name))), name...)
	b = append(b, kind)
	return append(b, uleb(index)...)
}

func section(id byte, payload []byte) []byte {
	return append(append([]byte{id}, uleb(uint32(len(payload)))...), payload...)
}

func vec(items [][]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
