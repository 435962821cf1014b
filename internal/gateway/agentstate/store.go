// Package agentstate persists the JSON-serializable state objects the
// chat agent produces. The gateway treats the state as opaque except
// for the nested code field that feeds live sessions.
package agentstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store keeps one state blob per agent thread, mirrored to a JSON file
// so threads survive a restart.
type Store struct {
	path string

	loadOnce sync.Once
	mu       sync.RWMutex
	byThread map[string]json.RawMessage
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		byThread: make(map[string]json.RawMessage),
	}
}

func (s *Store) Get(threadID string) (json.RawMessage, bool) {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.byThread[threadID]
	return state, ok
}

// Put replaces the state for a thread. The state must be a JSON object.
func (s *Store) Put(threadID string, state json.RawMessage) error {
	var probe map[string]any
	if err := json.Unmarshal(state, &probe); err != nil {
		return fmt.Errorf("agent state must be a JSON object: %w", err)
	}
	s.ensureLoaded()
	s.mu.Lock()
	s.byThread[threadID] = append(json.RawMessage(nil), state...)
	s.mu.Unlock()
	s.persist()
	return nil
}

// Code extracts the scene source from a thread's state: top-level
// starter_code first, then final_result.code.
func (s *Store) Code(threadID string) (string, bool) {
	raw, ok := s.Get(threadID)
	if !ok {
		return "", false
	}
	var state struct {
		StarterCode string `json:"starter_code"`
		FinalResult struct {
			Code string `json:"code"`
		} `json:"final_result"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return "", false
	}
	if state.FinalResult.Code != "" {
		return state.FinalResult.Code, true
	}
	if state.StarterCode != "" {
		return state.StarterCode, true
	}
	return "", false
}

func (s *Store) ensureLoaded() {
	s.loadOnce.Do(func() {
		if s.path == "" {
			return
		}
		data, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows map[string]json.RawMessage
		if err := json.Unmarshal(data, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for threadID, state := range rows {
			if threadID == "" {
				continue
			}
			s.byThread[threadID] = state
		}
	})
}

func (s *Store) persist() {
	if s.path == "" {
		return
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(s.byThread, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o644)
}
