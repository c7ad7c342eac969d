package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "position_state.json"), zerolog.Nop())
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	store := newTestStore(t)

	st, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Position != Cash {
		t.Fatalf("expected default CASH, got %s", st.Position)
	}
	if st.LastSignalDate != nil {
		t.Fatal("expected no last signal date on default state")
	}

	// The default must have been persisted.
	if _, err := os.Stat(store.path); err != nil {
		t.Fatalf("expected state file to exist: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	want := PositionState{
		Position:       Held,
		LastSignalDate: &date,
		Created:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Position != want.Position {
		t.Fatalf("position mismatch: %s != %s", got.Position, want.Position)
	}
	if got.LastSignalDate == nil || !got.LastSignalDate.Equal(date) {
		t.Fatalf("last signal date mismatch: %v", got.LastSignalDate)
	}
	if !got.Created.Equal(want.Created) {
		t.Fatalf("created mismatch: %s != %s", got.Created, want.Created)
	}
}

func TestCorruptStateDegradesToDefault(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("corrupt state must not raise: %v", err)
	}
	if st.Position != Cash || st.LastSignalDate != nil {
		t.Fatalf("expected default state, got %+v", st)
	}
}

func TestUnknownPositionDegradesToDefault(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte(`{"position":"MARGIN"}`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Position != Cash {
		t.Fatalf("expected default CASH for unknown position, got %s", st.Position)
	}
}

func TestApplyOverride(t *testing.T) {
	store := NewMemoryStore(Default(time.Now()))

	st, err := ApplyOverride(store, Held, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Position != Held {
		t.Fatalf("expected HELD, got %s", st.Position)
	}
	if st.LastSignalDate != nil {
		t.Fatal("override without as-of must clear the last signal date")
	}

	asOf := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	st, err = ApplyOverride(store, Cash, &asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.LastSignalDate == nil || !st.LastSignalDate.Equal(asOf) {
		t.Fatalf("expected last signal date %s, got %v", asOf, st.LastSignalDate)
	}

	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if persisted.Position != Cash {
		t.Fatalf("override must persist, got %s", persisted.Position)
	}
}

func TestApplyOverrideRejectsInvalidPosition(t *testing.T) {
	store := NewMemoryStore(Default(time.Now()))
	if _, err := ApplyOverride(store, Position("LONG"), nil); err == nil {
		t.Fatal("expected error for invalid position")
	}
}
