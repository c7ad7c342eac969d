// Package state persists the current position between runs. The file
// format is plain JSON so a manual trade can be reconciled by editing
// it directly.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Position is the side of the market the strategy currently holds.
type Position string

const (
	// Cash means fully out of the market.
	Cash Position = "CASH"
	// Held means fully invested in the target ETF.
	Held Position = "HELD"
)

// Valid reports whether p is a recognised position value.
func (p Position) Valid() bool {
	return p == Cash || p == Held
}

// PositionState is the persisted snapshot of the state machine.
type PositionState struct {
	Position       Position   `json:"position"`
	LastSignalDate *time.Time `json:"last_signal_date"`
	Created        time.Time  `json:"created"`
}

// Default returns the state assumed when nothing has been persisted:
// out of the market, no prior signal.
func Default(now time.Time) PositionState {
	return PositionState{Position: Cash, Created: now.UTC()}
}

// Store abstracts position persistence so the engine can be tested
// against an in-memory implementation.
type Store interface {
	Load() (PositionState, error)
	Save(PositionState) error
}

// FileStore keeps the state in a JSON document on disk.
type FileStore struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewFileStore builds a store backed by the file at path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "state").Logger(),
		now:    time.Now,
	}
}

// Load reads the persisted state. A missing file creates and persists
// the default; a corrupt file degrades to the default without failing.
func (s *FileStore) Load() (PositionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			st := Default(s.now())
			if saveErr := s.Save(st); saveErr != nil {
				return st, saveErr
			}
			return st, nil
		}
		return Default(s.now()), fmt.Errorf("read state file: %w", err)
	}

	var st PositionState
	if err := json.Unmarshal(data, &st); err != nil || !st.Position.Valid() {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("state file unreadable; using default")
		return Default(s.now()), nil
	}
	return st, nil
}

// Save writes the state atomically (temp file + rename).
func (s *FileStore) Save(st PositionState) error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	st     PositionState
	loaded bool
}

// NewMemoryStore seeds an in-memory store with st.
func NewMemoryStore(st PositionState) *MemoryStore {
	return &MemoryStore{st: st, loaded: true}
}

// Load returns the held state or the default when never seeded.
func (m *MemoryStore) Load() (PositionState, error) {
	if !m.loaded {
		return Default(time.Now()), nil
	}
	return m.st, nil
}

// Save replaces the held state.
func (m *MemoryStore) Save(st PositionState) error {
	m.st = st
	m.loaded = true
	return nil
}

// ApplyOverride forces the position to a given value without going
// through the threshold rule. Used to reconcile manual trades; the
// last signal date is only stamped when the override carries a fresh
// evaluation date.
func ApplyOverride(store Store, position Position, asOf *time.Time) (PositionState, error) {
	if !position.Valid() {
		return PositionState{}, fmt.Errorf("invalid position %q (want %s or %s)", position, Cash, Held)
	}

	st, err := store.Load()
	if err != nil {
		return PositionState{}, err
	}

	st.Position = position
	if asOf != nil {
		d := asOf.UTC()
		st.LastSignalDate = &d
	} else {
		st.LastSignalDate = nil
	}

	if err := store.Save(st); err != nil {
		return PositionState{}, err
	}
	return st, nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
