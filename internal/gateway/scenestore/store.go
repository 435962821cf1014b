// Package scenestore persists named scenes (source plus parameters) so
// authored work survives a session. Backed by Postgres when a DSN is
// configured, otherwise by a JSON file.
package scenestore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Scene struct {
	Name       string         `json:"name"`
	Code       string         `json:"code"`
	Parameters map[string]any `json:"parameters,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byName   map[string]Scene

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, Scene]
}

func New(path string) *Store {
	return &Store{
		path:   path,
		byName: make(map[string]Scene),
	}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Scene](512)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// NewFromEnv prefers Postgres when dsn is non-empty and reachable, and
// falls back to the JSON file store at path.
func NewFromEnv(dsn, path string) *Store {
	if strings.TrimSpace(dsn) == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

// Get returns the stored scene. The bool reports whether the scene
// exists; a non-nil error means the lookup itself failed and existence
// is unknown.
func (s *Store) Get(name string) (Scene, bool, error) {
	if s == nil {
		return Scene{}, false, nil
	}
	if s.db != nil {
		return s.getDB(name)
	}
	s.ensureLoadedFile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene, ok := s.byName[name]
	return scene, ok, nil
}

func (s *Store) Put(scene Scene) error {
	if s == nil || strings.TrimSpace(scene.Name) == "" {
		return nil
	}
	scene.UpdatedAt = time.Now().UTC()
	if s.db != nil {
		return s.putDB(scene)
	}
	s.ensureLoadedFile()
	s.mu.Lock()
	s.byName[scene.Name] = scene
	s.mu.Unlock()
	s.persistFile()
	return nil
}

func (s *Store) List() []string {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.listDB()
	}
	s.ensureLoadedFile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	return names
}

func (s *Store) Close() error {
	if s != nil && s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
			CREATE TABLE IF NOT EXISTS scenes (
				name       TEXT PRIMARY KEY,
				code       TEXT NOT NULL,
				parameters JSONB,
				updated_at TIMESTAMPTZ NOT NULL
			)`)
	})
	return s.schemaErr
}

func (s *Store) getDB(name string) (Scene, bool, error) {
	if scene, ok := s.cache.Get(name); ok {
		return scene, true, nil
	}
	if err := s.ensureSchema(); err != nil {
		return Scene{}, false, err
	}
	var scene Scene
	var params []byte
	row := s.db.QueryRow(`SELECT name, code, parameters, updated_at FROM scenes WHERE name = $1`, name)
	if err := row.Scan(&scene.Name, &scene.Code, &params, &scene.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scene{}, false, nil
		}
		return Scene{}, false, err
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &scene.Parameters)
	}
	s.cache.Add(name, scene)
	return scene, true, nil
}

func (s *Store) putDB(scene Scene) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	params, err := json.Marshal(scene.Parameters)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO scenes (name, code, parameters, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET code = EXCLUDED.code, parameters = EXCLUDED.parameters, updated_at = EXCLUDED.updated_at`,
		scene.Name, scene.Code, params, scene.UpdatedAt)
	if err != nil {
		return err
	}
	s.cache.Add(scene.Name, scene)
	return nil
}

func (s *Store) listDB() []string {
	if err := s.ensureSchema(); err != nil {
		return nil
	}
	rows, err := s.db.Query(`SELECT name FROM scenes ORDER BY name`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			names = append(names, name)
		}
	}
	return names
}

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		if s.path == "" {
			return
		}
		data, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []Scene
		if err := json.Unmarshal(data, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			if row.Name == "" {
				continue
			}
			s.byName[row.Name] = row
		}
	})
}

func (s *Store) persistFile() {
	if s.path == "" {
		return
	}
	s.mu.RLock()
	rows := make([]Scene, 0, len(s.byName))
	for _, scene := range s.byName {
		rows = append(rows, scene)
	}
	s.mu.RUnlock()
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o644)
}
