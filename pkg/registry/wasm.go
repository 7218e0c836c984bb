package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/kernelgate/governor/pkg/kernel"
)

// WASM is a Tool Registry adapter whose tools are sandboxed WebAssembly
// modules rather than native Go closures. Each module must export:
//
//	alloc(size uint32) uint32        -- reserve size bytes, return the offset
//	handle(ptr, len uint32) uint64   -- process the JSON params written at
//	                                     ptr:len, return (result_ptr<<32 | result_len)
//
// params/results both cross the boundary as JSON, kept symmetric with
// the native in-process Handler's map[string]interface{} shape.
type WASM struct {
	runtime wazero.Runtime
	modules map[string]wazero.CompiledModule
}

// NewWASM creates a WASM adapter backed by a fresh wazero runtime with
// WASI preview1 host functions instantiated, since most toolchains that
// target wasm32-wasi assume it's present even for pure compute modules.
func NewWASM(ctx context.Context) (*WASM, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("registry: instantiate WASI: %w", err)
	}
	return &WASM{runtime: rt, modules: make(map[string]wazero.CompiledModule)}, nil
}

// RegisterModule compiles wasmBytes and binds it to toolName. The
// module is compiled once and instantiated fresh per call, so one
// misbehaving invocation can't corrupt state carried into the next.
func (w *WASM) RegisterModule(ctx context.Context, toolName string, wasmBytes []byte) error {
	compiled, err := w.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("registry: compile wasm module for tool %q: %w", toolName, err)
	}
	w.modules[toolName] = compiled
	return nil
}

// Lookup satisfies kernel.Registry.
func (w *WASM) Lookup(name string) (kernel.Handler, bool) {
	compiled, ok := w.modules[name]
	if !ok {
		return nil, false
	}
	handler := func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return w.invoke(ctx, name, compiled, params)
	}
	return handler, true
}

// Close releases the runtime and every compiled module.
func (w *WASM) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

func (w *WASM) invoke(ctx context.Context, name string, compiled wazero.CompiledModule, params map[string]interface{}) (interface{}, error) {
	cfg := wazero.NewModuleConfig().WithName(name + "-instance")
	mod, err := w.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: instantiate wasm module %q: %w", name, err)
	}
	defer mod.Close(ctx)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("registry: marshal params for wasm tool %q: %w", name, err)
	}

	alloc := mod.ExportedFunction("alloc")
	handle := mod.ExportedFunction("handle")
	if alloc == nil || handle == nil {
		return nil, fmt.Errorf("registry: wasm tool %q does not export alloc/handle", name)
	}

	allocRes, err := alloc.Call(ctx, uint64(len(paramsJSON)))
	if err != nil {
		return nil, fmt.Errorf("registry: wasm alloc failed for tool %q: %w", name, err)
	}
	ptr := uint32(allocRes[0])

	if !mod.Memory().Write(ptr, paramsJSON) {
		return nil, fmt.Errorf("registry: writing params into wasm memory failed for tool %q", name)
	}

	handleRes, err := handle.Call(ctx, uint64(ptr), uint64(len(paramsJSON)))
	if err != nil {
		return nil, fmt.Errorf("registry: wasm handle failed for tool %q: %w", name, err)
	}

	packed := handleRes[0]
	resultPtr := uint32(packed >> 32)
	resultLen := uint32(packed)

	resultBytes, ok := mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("registry: reading wasm result memory failed for tool %q", name)
	}

	var result interface{}
	if err := json.Unmarshal(resultBytes, &result); err != nil {
		return nil, fmt.Errorf("registry: unmarshal wasm result for tool %q: %w", name, err)
	}
	return result, nil
}
