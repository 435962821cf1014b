// Package compiler turns untrusted scene source text into a declarative
// project description: transpile the typed JSX dialect, execute the
// result in a sandbox against the whitelisted module registry, and wrap
// the exported scene descriptors with the caller's runtime variables.
package compiler

import (
	"context"
	"strings"
	"time"

	"scenestudio/internal/playground/registry"
	"scenestudio/internal/playground/sandbox"
	"scenestudio/internal/playground/transpiler"
)

// ParameterValue is a runtime variable supplied to scene programs:
// string, number, bool, a nested map, or an array of these.
type ParameterValue = any

// ParameterMap holds the named runtime variables of a project.
type ParameterMap map[string]ParameterValue

// SceneDescriptor is the declarative object a scene program exports.
type SceneDescriptor map[string]any

// PreviewSettings controls how the player previews the project.
type PreviewSettings struct {
	ResolutionScale int `json:"resolutionScale"`
}

// Settings carries static project settings handed to the player.
// Dimensions are deliberately absent; the caller supplies them through
// globals.
type Settings struct {
	Preview PreviewSettings `json:"preview"`
}

// Project bundles the compiled scene descriptors with the variables and
// settings the player needs.
type Project struct {
	Name      string            `json:"name"`
	Scenes    []SceneDescriptor `json:"scenes"`
	Variables ParameterMap      `json:"variables"`
	Settings  Settings          `json:"settings"`
}

// Options carries per-compile inputs.
type Options struct {
	Parameters ParameterMap
	Globals    map[string]any
}

const (
	defaultProjectName     = "Scene Studio"
	defaultResolutionScale = 4
)

// Compiler is the single entry point from source text to Project. It
// owns a transpiler instance and the module registry shared by all
// compiles for its lifetime.
type Compiler struct {
	transpiler *transpiler.Transpiler
	registry   *registry.Registry
	execLimit  time.Duration
}

func New(reg *registry.Registry) *Compiler {
	return &Compiler{
		transpiler: transpiler.New(),
		registry:   reg,
	}
}

// Initialize prepares the transpiler toolchain. Idempotent; must
// complete once before ProcessCode.
func (c *Compiler) Initialize(ctx context.Context) error {
	return c.transpiler.Initialize(ctx)
}

// Ready reports whether Initialize has completed successfully.
func (c *Compiler) Ready() bool { return c.transpiler.Ready() }

// Registry exposes the module registry for bootstrap installation.
func (c *Compiler) Registry() *registry.Registry { return c.registry }

// SetExecLimit bounds execution time of a single scene program.
func (c *Compiler) SetExecLimit(d time.Duration) { c.execLimit = d }

// ProcessCode compiles source into a Project. Blank source yields a
// nil Project with no error: there is nothing to preview. Transpile,
// module resolution, execution and invalid-export failures all
// propagate to the caller as-is; nothing is wrapped beyond what the
// lower layers attach.
func (c *Compiler) ProcessCode(ctx context.Context, source string, opts Options) (*Project, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	descriptors, err := c.processScene(ctx, source, opts.Globals)
	if err != nil {
		return nil, err
	}

	params := opts.Parameters
	if params == nil {
		params = ParameterMap{}
	}
	return &Project{
		Name:      defaultProjectName,
		Scenes:    descriptors,
		Variables: params,
		Settings: Settings{
			Preview: PreviewSettings{ResolutionScale: defaultResolutionScale},
		},
	}, nil
}

func (c *Compiler) processScene(ctx context.Context, source string, globals map[string]any) ([]SceneDescriptor, error) {
	code, err := c.transpiler.Transform(source)
	if err != nil {
		return nil, err
	}

	exported, err := sandbox.Execute(ctx, code, sandbox.Options{
		Resolver: c.registry,
		Globals:  globals,
		Timeout:  c.execLimit,
	})
	if err != nil {
		return nil, err
	}

	return normalizeScenes(exported)
}

// normalizeScenes wraps a single descriptor in a one-element slice and
// passes arrays of descriptors through.
func normalizeScenes(exported any) ([]SceneDescriptor, error) {
	switch v := exported.(type) {
	case map[string]any:
		return []SceneDescriptor{SceneDescriptor(v)}, nil
	case []any:
		scenes := make([]SceneDescriptor, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &sandbox.ErrInvalidSceneExport{Kind: "array element is not an object"}
			}
			scenes = append(scenes, SceneDescriptor(m))
		}
		return scenes, nil
	default:
		return nil, &sandbox.ErrInvalidSceneExport{Kind: "unsupported export shape"}
	}
}
