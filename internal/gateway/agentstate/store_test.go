package agentstate

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "agent_states.json"))
	state := json.RawMessage(`{"prompt":"make an intro","starter_code":"export default {};"}`)
	if err := s.Put("thread-1", state); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := s.Get("thread-1")
	if !ok {
		t.Fatal("expected state")
	}
	var m map[string]any
	if err := json.Unmarshal(got, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["prompt"] != "make an intro" {
		t.Fatalf("prompt = %v", m["prompt"])
	}
}

func TestPutRejectsNonObject(t *testing.T) {
	s := NewStore("")
	if err := s.Put("t", json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("expected error for non-object state")
	}
}

func TestCodePrefersFinalResult(t *testing.T) {
	s := NewStore("")
	_ = s.Put("t", json.RawMessage(`{
		"starter_code": "export default { v: 1 };",
		"final_result": { "code": "export default { v: 2 };" }
	}`))
	code, ok := s.Code("t")
	if !ok || code != "export default { v: 2 };" {
		t.Fatalf("code = %q ok = %v", code, ok)
	}
}

func TestCodeFallsBackToStarter(t *testing.T) {
	s := NewStore("")
	_ = s.Put("t", json.RawMessage(`{"starter_code": "export default {};"}`))
	code, ok := s.Code("t")
	if !ok || code != "export default {};" {
		t.Fatalf("code = %q ok = %v", code, ok)
	}
}

func TestPersistenceAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_states.json")
	first := NewStore(path)
	if err := first.Put("t", json.RawMessage(`{"prompt":"p"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	second := NewStore(path)
	if _, ok := second.Get("t"); !ok {
		t.Fatal("state not reloaded from disk")
	}
}
