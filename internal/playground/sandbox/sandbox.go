package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"scenestudio/internal/playground/registry"
)

// ModuleResolver satisfies require() calls made by executed code.
type ModuleResolver interface {
	ResolveModule(name string) (registry.Bundle, error)
}

// ExecError carries a failure thrown by executed scene code. The
// original message and stack are preserved verbatim for display.
type ExecError struct {
	Message string
	Stack   string
}

func (e *ExecError) Error() string { return e.Message }

// ErrInvalidSceneExport reports a default export that is not an object.
type ErrInvalidSceneExport struct {
	Kind string
}

func (e *ErrInvalidSceneExport) Error() string {
	return "invalid scene export: " + e.Kind
}

// Options configures a single execution. The context is rebuilt fresh
// for every call; nothing leaks between executions.
type Options struct {
	Resolver ModuleResolver
	Globals  map[string]any
	Timeout  time.Duration
}

const defaultTimeout = 5 * time.Second

// The transpiled artifact is CommonJS-shaped; run it as a function body
// against injected module/exports/require and unwrap the ES-module
// interop marker on the way out.
const wrapperPrefix = `(function(require, module, exports) {
`
const wrapperSuffix = `
if (module.exports && module.exports.__esModule) { return module.exports["default"]; }
return module.exports;
})`

// Execute runs transpiled code in an isolated VM and returns its
// default export. The export must be an object or an array of objects;
// anything else fails with ErrInvalidSceneExport.
func Execute(ctx context.Context, code string, opts Options) (any, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if err := installContext(vm, opts); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	watchdog := make(chan struct{})
	go func() {
		select {
		case <-execCtx.Done():
			vm.Interrupt(execCtx.Err())
		case <-watchdog:
		}
	}()
	defer close(watchdog)

	wrapped := wrapperPrefix + code + wrapperSuffix
	fnVal, err := vm.RunScript("scene.js", wrapped)
	if err != nil {
		return nil, asExecError(err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("sandbox: wrapper did not evaluate to a function")
	}

	moduleObj := vm.NewObject()
	exportsObj := vm.NewObject()
	_ = moduleObj.Set("exports", exportsObj)

	result, err := fn(goja.Undefined(), requireFunc(vm, opts.Resolver), moduleObj, exportsObj)
	if err != nil {
		return nil, asExecError(err)
	}

	exported := result.Export()
	switch exported.(type) {
	case map[string]any, []any:
		return exported, nil
	case nil:
		return nil, &ErrInvalidSceneExport{Kind: "undefined"}
	default:
		return nil, &ErrInvalidSceneExport{Kind: fmt.Sprintf("%T", exported)}
	}
}

func installContext(vm *goja.Runtime, opts Options) error {
	// Environment shims the transpiled output expects.
	if err := vm.Set("process", map[string]any{"env": map[string]any{}}); err != nil {
		return err
	}
	if err := vm.Set("__dirname", "/"); err != nil {
		return err
	}
	if err := vm.Set("__filename", "scene.tsx"); err != nil {
		return err
	}
	for name, value := range opts.Globals {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("sandbox: inject global %q: %w", name, err)
		}
	}
	return nil
}

func requireFunc(vm *goja.Runtime, resolver ModuleResolver) goja.Value {
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if resolver == nil {
			panic(vm.NewGoError(&registry.ErrModuleNotFound{Name: name}))
		}
		bundle, err := resolver.ResolveModule(name)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		obj := vm.NewObject()
		for export, value := range bundle {
			_ = obj.Set(export, value)
		}
		return obj
	})
}

func asExecError(err error) error {
	if ex, ok := err.(*goja.Exception); ok {
		msg := ex.Error()
		if v := ex.Value(); v != nil {
			if obj, ok := v.(*goja.Object); ok {
				if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
					msg = m.String()
				}
			}
		}
		return &ExecError{Message: msg, Stack: ex.String()}
	}
	if ir, ok := err.(*goja.InterruptedError); ok {
		return &ExecError{Message: "execution interrupted: " + ir.String()}
	}
	return err
}
