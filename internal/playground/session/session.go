// Package session owns the mutable state of one live editing session
// and decides when recompilation happens. Recompiles follow an explicit
// rule: compile when the (source, parameters, globals) tuple changed
// since the last submitted compile and no compile is in flight.
package session

import (
	"context"
	"strings"
	"sync"

	"scenestudio/internal/playground/compiler"
)

// Snapshot is the externally visible state of a session at one point in
// time. Exactly one of Project and Error is set after a finished
// compile of non-empty source; both are empty for empty source.
type Snapshot struct {
	Code        string
	Parameters  compiler.ParameterMap
	Globals     map[string]any
	Project     *compiler.Project
	Error       string
	IsReady     bool
	IsCompiling bool
	AutoCompile bool
}

// Config seeds a new session.
type Config struct {
	Code        string
	Parameters  compiler.ParameterMap
	Globals     map[string]any
	AutoCompile bool
}

// Session drives the compile pipeline for one live view. All mutation
// operations are synchronous and only touch session state; compilation
// itself is coalesced and runs in the background.
type Session struct {
	compiler *compiler.Compiler

	mu          sync.Mutex
	code        string
	params      compiler.ParameterMap
	globals     map[string]any
	project     *compiler.Project
	err         error
	ready       bool
	compiling   bool
	autoCompile bool
	dirty       bool
	token       uint64
	closed      bool
	subscribers map[chan Snapshot]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func New(c *compiler.Compiler, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		compiler:    c,
		code:        cfg.Code,
		params:      cloneParams(cfg.Parameters),
		globals:     cloneGlobals(cfg.Globals),
		autoCompile: cfg.AutoCompile,
		dirty:       true,
		subscribers: make(map[chan Snapshot]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	go func() {
		err := c.Initialize(ctx)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if err != nil {
			// Ready is never reached; the failure occupies the error
			// slot until the session is recreated.
			s.err = err
		} else {
			s.ready = true
		}
		s.notifyLocked()
		s.maybeCompileLocked()
		s.mu.Unlock()
	}()

	return s
}

// SetSourceText replaces the source wholesale.
func (s *Session) SetSourceText(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code == code {
		return
	}
	s.code = code
	s.dirty = true
	s.notifyLocked()
	s.maybeCompileLocked()
}

// MergeParameters merges shallowly: top-level keys overwrite, no deep
// merge.
func (s *Session) MergeParameters(params compiler.ParameterMap) {
	if len(params) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := cloneParams(s.params)
	for k, v := range params {
		merged[k] = v
	}
	s.params = merged
	s.dirty = true
	s.notifyLocked()
	s.maybeCompileLocked()
}

// MergeGlobals merges environment-level values with the same shallow
// semantics as MergeParameters.
func (s *Session) MergeGlobals(globals map[string]any) {
	if len(globals) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := cloneGlobals(s.globals)
	for k, v := range globals {
		merged[k] = v
	}
	s.globals = merged
	s.dirty = true
	s.notifyLocked()
	s.maybeCompileLocked()
}

func (s *Session) SetAutoCompile(auto bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoCompile == auto {
		return
	}
	s.autoCompile = auto
	s.notifyLocked()
	s.maybeCompileLocked()
}

// Run requests an explicit compile. Ignored while a compile is in
// flight or before the toolchain is ready.
func (s *Session) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.startCompileLocked()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving state snapshots. The channel
// holds only the latest snapshot; slow consumers observe the freshest
// state, not every intermediate one.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
}

// Close tears the session down. In-flight compile results are
// discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.token++ // invalidates any in-flight result
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
	s.cancel()
}

// maybeCompileLocked applies the reactive rule.
func (s *Session) maybeCompileLocked() {
	if !s.autoCompile || !s.dirty {
		return
	}
	s.startCompileLocked()
}

func (s *Session) startCompileLocked() {
	if !s.ready || s.compiling || s.closed {
		// A request during an active compile is dropped, not queued;
		// the dirty flag survives and re-triggers after settle.
		return
	}
	s.dirty = false

	code := s.code
	if strings.TrimSpace(code) == "" {
		// Empty source is not an error: nothing to preview.
		s.project = nil
		s.err = nil
		s.notifyLocked()
		return
	}

	s.compiling = true
	s.token++
	token := s.token
	params := cloneParams(s.params)
	globals := cloneGlobals(s.globals)
	s.notifyLocked()

	go func() {
		project, err := s.compiler.ProcessCode(s.ctx, code, compiler.Options{
			Parameters: params,
			Globals:    globals,
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || token != s.token {
			// A stale result never overwrites newer state.
			return
		}
		s.compiling = false
		if err != nil {
			s.project = nil
			s.err = err
		} else {
			s.project = project
			s.err = nil
		}
		s.notifyLocked()
		// Changes that landed mid-compile re-trigger exactly one
		// follow-up compile here.
		s.maybeCompileLocked()
	}()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Code:        s.code,
		Parameters:  cloneParams(s.params),
		Globals:     cloneGlobals(s.globals),
		Project:     s.project,
		IsReady:     s.ready,
		IsCompiling: s.compiling,
		AutoCompile: s.autoCompile,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Replace the stale pending snapshot with the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func cloneParams(in compiler.ParameterMap) compiler.ParameterMap {
	out := make(compiler.ParameterMap, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneGlobals(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
