// Package modules installs the fixed table of scene framework modules
// a scene program is allowed to import. The gateway does not render;
// each capability returns declarative data that ends up in the scene
// descriptor handed to the external player.
package modules

import (
	"github.com/dop251/goja"

	"scenestudio/internal/playground/registry"
)

// Install registers the whitelisted framework modules. Call once on the
// registry before the first compile.
func Install(reg *registry.Registry) {
	jsxRuntime := func() registry.Bundle { return jsxRuntimeBundle() }
	reg.AddResolvers(map[string]registry.Resolver{
		"@revideo/2d":                 twoDBundle,
		"@revideo/core":               coreBundle,
		"@revideo/2d/jsx-runtime":     jsxRuntime,
		"@revideo/2d/lib/jsx-runtime": jsxRuntime,
	})
}

// twoDBundle exposes the 2d scene entry point and the component set
// scene programs reference from JSX.
func twoDBundle() registry.Bundle {
	b := registry.Bundle{
		"makeScene2D": makeScene2D,
	}
	for _, name := range []string{
		"Audio", "Circle", "Grid", "Img", "Layout", "Line",
		"Node", "Rect", "Txt", "Video",
	} {
		b[name] = component(name)
	}
	return b
}

func coreBundle() registry.Bundle {
	return registry.Bundle{
		"createRef":    createRef,
		"createSignal": createSignal,
		"waitFor":      waitFor,
		"all":          all,
		"chain":        chain,
		"useScene":     useScene,
	}
}

func jsxRuntimeBundle() registry.Bundle {
	return registry.Bundle{
		"jsx":      jsxElement,
		"jsxs":     jsxElement,
		"Fragment": component("Fragment"),
	}
}

// makeScene2D yields a scene descriptor. The builder function is typed
// and validated but never invoked here; running it is the player's job.
func makeScene2D(name string, builder goja.Value) map[string]any {
	desc := map[string]any{
		"name": name,
		"kind": "scene2d",
	}
	if builder != nil && !goja.IsUndefined(builder) && !goja.IsNull(builder) {
		desc["hasBuilder"] = true
	}
	return desc
}

func component(name string) map[string]any {
	return map[string]any{"component": name}
}

func jsxElement(typ any, props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"type":  typ,
		"props": props,
	}
}

func createRef() map[string]any {
	return map[string]any{"current": nil}
}

func createSignal(initial any) map[string]any {
	return map[string]any{"value": initial}
}

func waitFor(seconds float64) map[string]any {
	return map[string]any{"wait": seconds}
}

func all(tasks ...any) []any { return tasks }

func chain(tasks ...any) map[string]any {
	return map[string]any{"chain": tasks}
}

func useScene() map[string]any {
	return map[string]any{"scene": "current"}
}
