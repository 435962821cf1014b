package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestudio/internal/playground/registry"
	"scenestudio/internal/playground/sandbox"
)

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	c := New(registry.New())
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func TestProcessCodeRoundTrip(t *testing.T) {
	c := newCompiler(t)
	project, err := c.ProcessCode(context.Background(), "export default { value: 42 };", Options{
		Parameters: ParameterMap{"x": 1},
	})
	require.NoError(t, err)
	require.Len(t, project.Scenes, 1)
	assert.Equal(t, int64(42), project.Scenes[0]["value"])
	assert.Equal(t, ParameterMap{"x": 1}, project.Variables)
	assert.Nil(t, err)
}

func TestProcessCodeBlankSource(t *testing.T) {
	c := newCompiler(t)
	for _, source := range []string{"", "   \n\t"} {
		project, err := c.ProcessCode(context.Background(), source, Options{})
		require.NoError(t, err)
		assert.Nil(t, project)
	}
}

func TestProcessCodeSceneArray(t *testing.T) {
	c := newCompiler(t)
	project, err := c.ProcessCode(context.Background(),
		"export default [{ name: \"a\" }, { name: \"b\" }];", Options{})
	require.NoError(t, err)
	require.Len(t, project.Scenes, 2)
	assert.Equal(t, "b", project.Scenes[1]["name"])
}

func TestProcessCodeDefaultsParameters(t *testing.T) {
	c := newCompiler(t)
	project, err := c.ProcessCode(context.Background(), "export default {};", Options{})
	require.NoError(t, err)
	assert.NotNil(t, project.Variables)
	assert.Empty(t, project.Variables)
	assert.Equal(t, 4, project.Settings.Preview.ResolutionScale)
}

func TestProcessCodeSurfacesTransformError(t *testing.T) {
	c := newCompiler(t)
	_, err := c.ProcessCode(context.Background(), `const s = "unterminated`, Options{})
	require.Error(t, err)
	assert.NotEmpty(t, err.Error())
}

func TestProcessCodeSurfacesExecutionError(t *testing.T) {
	c := newCompiler(t)
	_, err := c.ProcessCode(context.Background(), `throw new Error("boom"); export default {};`, Options{})
	require.Error(t, err)
	var ee *sandbox.ExecError
	require.True(t, errors.As(err, &ee), "got %T", err)
	assert.Contains(t, ee.Message, "boom")
}

func TestProcessCodeUsesModuleRegistry(t *testing.T) {
	c := newCompiler(t)
	c.Registry().AddResolvers(map[string]registry.Resolver{
		"@revideo/core": func() registry.Bundle {
			return registry.Bundle{"makeScene": func(name string) map[string]any {
				return map[string]any{"scene": name}
			}}
		},
	})
	src := `
		import { makeScene } from "@revideo/core";
		export default makeScene("intro");
	`
	project, err := c.ProcessCode(context.Background(), src, Options{})
	require.NoError(t, err)
	require.Len(t, project.Scenes, 1)
	assert.Equal(t, "intro", project.Scenes[0]["scene"])
}

func TestProcessCodeUnknownImport(t *testing.T) {
	c := newCompiler(t)
	src := `
		import { thing } from "not-a-module";
		export default { thing };
	`
	_, err := c.ProcessCode(context.Background(), src, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not found")
}

func TestProcessCodeGlobalsReachScene(t *testing.T) {
	c := newCompiler(t)
	src := "declare const WIDTH: number;\nexport default { width: WIDTH };"
	project, err := c.ProcessCode(context.Background(), src, Options{
		Globals: map[string]any{"WIDTH": 1920},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1920), project.Scenes[0]["width"])
}
