package transpiler

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"scenestudio/internal/cache/memory"
)

// Scene programs are written in a typed JSX dialect; the adapter lowers
// them to a CommonJS function body the sandbox can run. The JSX runtime
// is resolved against the scene framework's import source, matching
// what the framework's own build does.
const jsxImportSource = "@revideo/2d/lib"

const tsconfigRaw = `{
	"compilerOptions": {
		"experimentalDecorators": true,
		"emitDecoratorMetadata": false,
		"useDefineForClassFields": false
	}
}`

var ErrNotInitialized = errors.New("transpiler: not initialized")

// TransformError wraps the first compiler diagnostic for a source text
// that failed to transpile.
type TransformError struct {
	Message string
	Line    int
	Column  int
}

func (e *TransformError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("transform failed at %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "transform failed: " + e.Message
}

type initState int

const (
	stateUninitialized initState = iota
	stateInitializing
	stateReady
	stateFailed
)

// Transpiler converts typed JSX scene source into executable CommonJS.
// Initialize must complete once before Transform; concurrent callers
// observe the same completion.
type Transpiler struct {
	mu      sync.Mutex
	state   initState
	initErr error
	done    chan struct{}

	memo *memory.LRUTTL[[32]byte, string]
}

func New() *Transpiler {
	return &Transpiler{
		memo: memory.NewLRUTTL[[32]byte, string](256, 8<<20, 10*time.Minute),
	}
}

// Initialize brings the compiler toolchain up. Only the first call does
// work; later calls return the recorded outcome. A failed initialization
// may be retried.
func (t *Transpiler) Initialize(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case stateReady:
		t.mu.Unlock()
		return nil
	case stateInitializing:
		done := t.done
		t.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		t.mu.Lock()
		err := t.initErr
		t.mu.Unlock()
		return err
	case stateFailed:
		// fall through to retry
	}
	t.state = stateInitializing
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	// Probe the toolchain with a trivial program so a broken option set
	// fails here rather than on the first user compile.
	_, err := transform("export default {};")

	t.mu.Lock()
	if err != nil {
		t.state = stateFailed
		t.initErr = fmt.Errorf("transpiler init: %w", err)
	} else {
		t.state = stateReady
		t.initErr = nil
	}
	close(done)
	t.mu.Unlock()
	return t.initErr
}

// Ready reports whether initialization has completed successfully.
func (t *Transpiler) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateReady
}

// Transform lowers source to CommonJS. A transform failure is
// per-compile; the adapter stays usable afterwards.
func (t *Transpiler) Transform(source string) (string, error) {
	if !t.Ready() {
		return "", ErrNotInitialized
	}
	key := sha256.Sum256([]byte(source))
	if code, ok := t.memo.Get(key); ok {
		return code, nil
	}
	code, err := transform(source)
	if err != nil {
		return "", err
	}
	t.memo.Set(key, code, len(code))
	return code, nil
}

func transform(source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:          api.LoaderTSX,
		Format:          api.FormatCommonJS,
		Target:          api.ES2022,
		Platform:        api.PlatformBrowser,
		JSX:             api.JSXAutomatic,
		JSXImportSource: jsxImportSource,
		TsconfigRaw:     tsconfigRaw,
		Sourcemap:       api.SourceMapNone,
		Sourcefile:      "scene.tsx",
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		te := &TransformError{Message: msg.Text}
		if msg.Location != nil {
			te.Line = msg.Location.Line
			te.Column = msg.Location.Column
		}
		return "", te
	}
	return string(result.Code), nil
}
