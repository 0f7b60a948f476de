package wasm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

var (
	ErrMissingExport  = errors.New("wasm: missing export")
	ErrBadSignature   = errors.New("wasm: export has unexpected signature")
	ErrBufferTooSmall = errors.New("wasm: response does not fit buffer")
	ErrGuest          = errors.New("wasm: guest call failed")
)

const (
	exportMemory   = "memory"
	exportAlloc    = "alloc"
	exportDealloc  = "dealloc"
	exportDescribe = "getModelDescription"
	exportInit     = "init"
	exportGet      = "getValues"
	exportSet      = "setValues"
	exportStep     = "doStep"
)

var (
	i32 = api.ValueTypeI32

	callSignature = signature{params: []api.ValueType{i32, i32, i32, i32}, results: []api.ValueType{i32}}

	requiredExports = map[string]signature{
		exportAlloc:    {params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		exportDealloc:  {params: []api.ValueType{i32, i32}},
		exportDescribe: callSignature,
		exportInit:     callSignature,
		exportGet:      callSignature,
		exportSet:      callSignature,
		exportStep:     callSignature,
	}
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func (s signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(s.params, def.ParamTypes()) && slices.Equal(s.results, def.ResultTypes())
}

// Options tune the sandbox a model runs in.
type Options struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages.
	MemoryLimitPages uint32
	// OutputBuffer is the initial response buffer size in bytes.
	OutputBuffer uint32
}

func DefaultOptions() Options {
	return Options{
		MemoryLimitPages: 256,
		OutputBuffer:     4096,
	}
}

func (o Options) validate() error {
	if o.MemoryLimitPages == 0 || o.MemoryLimitPages > 65536 {
		return fmt.Errorf("memory limit must be between 1 and 65536 pages, got %d", o.MemoryLimitPages)
	}
	if o.OutputBuffer == 0 {
		return errors.New("output buffer must not be empty")
	}
	return nil
}

// Load compiles and instantiates code in a fresh runtime. The returned model
// owns the runtime and releases it on Close.
func Load(ctx context.Context, code []byte, opts Options, logger zerolog.Logger) (*Model, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(opts.MemoryLimitPages))

	mod, err := instantiate(ctx, r, code, logger)
	if err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	abi, err := newModuleABI(mod)
	if err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	logger.Debug().
		Uint32("memory_pages", opts.MemoryLimitPages).
		Int("code_bytes", len(code)).
		Msg("wasm model instantiated")

	m := newModel(&guest{abi: abi, outCap: opts.OutputBuffer}, logger)
	m.runtime = r
	return m, nil
}

func instantiate(ctx context.Context, r wazero.Runtime, code []byte, logger zerolog.Logger) (api.Module, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, fmt.Errorf("instantiating wasi: %w", err)
	}

	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("compiling module: %w", err)
	}
	if err := checkExports(compiled); err != nil {
		return nil, err
	}

	cfg := wazero.NewModuleConfig().
		WithName("model").
		WithStdout(guestOutput{logger: logger, stream: "stdout"}).
		WithStderr(guestOutput{logger: logger, stream: "stderr"}).
		WithStartFunctions("_initialize")

	mod, err := r.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiating module: %w", err)
	}
	return mod, nil
}

func checkExports(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[exportMemory]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingExport, exportMemory)
	}

	fns := compiled.ExportedFunctions()
	names := make([]string, 0, len(requiredExports))
	for name := range requiredExports {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		def, ok := fns[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
		if !requiredExports[name].matches(def) {
			return fmt.Errorf("%w: %s", ErrBadSignature, name)
		}
	}
	return nil
}

// moduleABI is the abi of an instantiated wazero module.
type moduleABI struct {
	mod       api.Module
	allocFn   api.Function
	deallocFn api.Function
	fns       map[string]api.Function
}

func newModuleABI(mod api.Module) (*moduleABI, error) {
	a := &moduleABI{
		mod:       mod,
		allocFn:   mod.ExportedFunction(exportAlloc),
		deallocFn: mod.ExportedFunction(exportDealloc),
		fns:       make(map[string]api.Function),
	}
	for _, name := range []string{exportDescribe, exportInit, exportGet, exportSet, exportStep} {
		a.fns[name] = mod.ExportedFunction(name)
	}
	if mod.Memory() == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingExport, exportMemory)
	}
	return a, nil
}

func (a *moduleABI) alloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := a.allocFn.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, fmt.Errorf("alloc(%d): %w", size, err)
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("alloc(%d) returned null", size)
	}
	return ptr, nil
}

func (a *moduleABI) dealloc(ctx context.Context, ptr, size uint32) error {
	if _, err := a.deallocFn.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(size)); err != nil {
		return fmt.Errorf("dealloc(%d): %w", ptr, err)
	}
	return nil
}

func (a *moduleABI) read(ptr, size uint32) ([]byte, bool) {
	return a.mod.Memory().Read(ptr, size)
}

func (a *moduleABI) write(ptr uint32, data []byte) bool {
	return a.mod.Memory().Write(ptr, data)
}

func (a *moduleABI) call(ctx context.Context, fn string, inPtr, inLen, outPtr, outCap uint32) (int32, error) {
	f, ok := a.fns[fn]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingExport, fn)
	}
	res, err := f.Call(ctx, api.EncodeU32(inPtr), api.EncodeU32(inLen), api.EncodeU32(outPtr), api.EncodeU32(outCap))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fn, err)
	}
	return api.DecodeI32(res[0]), nil
}

// guestOutput forwards guest stdout and stderr lines to the logger.
type guestOutput struct {
	logger zerolog.Logger
	stream string
}

func (w guestOutput) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Info().Str("stream", w.stream).Msg(line)
		}
	}
	return len(p), nil
}
