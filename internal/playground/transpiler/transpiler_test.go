package transpiler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func newReady(t *testing.T) *Transpiler {
	t.Helper()
	tr := New()
	if err := tr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return tr
}

func TestTransformBeforeInitialize(t *testing.T) {
	tr := New()
	if _, err := tr.Transform("export default {};"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeIdempotent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tr.Initialize(context.Background())
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("initialize[%d]: %v", i, err)
		}
	}
	if !tr.Ready() {
		t.Fatal("expected Ready after initialize")
	}
}

func TestTransformLowersTypedSourceToCommonJS(t *testing.T) {
	tr := newReady(t)
	src := `
		interface Options { label: string }
		const opts: Options = { label: "hi" };
		export default { name: opts.label };
	`
	code, err := tr.Transform(src)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !strings.Contains(code, "exports") {
		t.Fatalf("expected CommonJS-shaped output, got:\n%s", code)
	}
	if strings.Contains(code, "interface Options") {
		t.Fatal("type declarations should be erased")
	}
}

func TestTransformReportsSyntaxError(t *testing.T) {
	tr := newReady(t)
	_, err := tr.Transform(`const s = "unterminated`)
	if err == nil {
		t.Fatal("expected syntax error")
	}
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransformError, got %T", err)
	}
	if te.Message == "" {
		t.Fatal("diagnostic message must be non-empty")
	}
	// A failed transform must not wedge the adapter.
	if _, err := tr.Transform("export default {};"); err != nil {
		t.Fatalf("transform after failure: %v", err)
	}
}

func TestTransformMemoizesBySource(t *testing.T) {
	tr := newReady(t)
	src := "export default { value: 1 };"
	a, err := tr.Transform(src)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	b, err := tr.Transform(src)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if a != b {
		t.Fatal("expected identical memoized output")
	}
}
