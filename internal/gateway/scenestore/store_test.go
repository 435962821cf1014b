package scenestore

import (
	"database/sql"
	"path/filepath"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "scenes.json"))
	err := s.Put(Scene{
		Name:       "intro",
		Code:       "export default { value: 1 };",
		Parameters: map[string]any{"x": 1.0},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	scene, ok, err := s.Get("intro")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected scene")
	}
	if scene.Code != "export default { value: 1 };" {
		t.Fatalf("code = %q", scene.Code)
	}
	if scene.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt not set")
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.json")
	first := New(path)
	if err := first.Put(Scene{Name: "a", Code: "export default {};"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	second := New(path)
	if _, ok, err := second.Get("a"); err != nil || !ok {
		t.Fatalf("scene not reloaded from disk (ok=%v err=%v)", ok, err)
	}
	if names := second.List(); len(names) != 1 || names[0] != "a" {
		t.Fatalf("names = %v", names)
	}
}

func TestPutIgnoresUnnamedScene(t *testing.T) {
	s := New("")
	if err := s.Put(Scene{Name: "  "}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if names := s.List(); len(names) != 0 {
		t.Fatalf("names = %v", names)
	}
}

func TestGetReportsDatabaseFailure(t *testing.T) {
	db, err := sql.Open("pgx", "postgres://127.0.0.1:1/none?connect_timeout=1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cache, err := lru.New[string, Scene](8)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	s := &Store{db: db, cache: cache}
	_, ok, err := s.Get("anything")
	if err == nil {
		t.Fatal("expected an error from an unreachable database, not a miss")
	}
	if ok {
		t.Fatal("lookup failure must not report the scene as found")
	}
}

func TestNewFromEnvFileFallback(t *testing.T) {
	s := NewFromEnv("", filepath.Join(t.TempDir(), "scenes.json"))
	if s.db != nil {
		t.Fatal("expected file-backed store for empty DSN")
	}
}
