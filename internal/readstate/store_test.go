package readstate

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{DirectKey(42), "direct:42"},
		{GroupKey(7), "group:7"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLastReadUnset(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.LastRead(DirectKey(1))
	if err != nil {
		t.Fatalf("LastRead: %v", err)
	}
	if ok {
		t.Error("LastRead() ok = true for never-opened conversation")
	}
}

func TestSetLastReadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	key := DirectKey(1)

	if err := s.SetLastRead(key, 104); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}

	got, ok, err := s.LastRead(key)
	if err != nil {
		t.Fatalf("LastRead: %v", err)
	}
	if !ok {
		t.Fatal("LastRead() ok = false after SetLastRead")
	}
	if got != 104 {
		t.Errorf("LastRead() = %d, want 104", got)
	}
}

func TestSetLastReadForwardOnly(t *testing.T) {
	s := openTestStore(t)
	key := GroupKey(3)

	if err := s.SetLastRead(key, 10); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}
	// A smaller id must not move the position backwards.
	if err := s.SetLastRead(key, 5); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}

	got, _, err := s.LastRead(key)
	if err != nil {
		t.Fatalf("LastRead: %v", err)
	}
	if got != 10 {
		t.Errorf("LastRead() = %d after backwards write, want 10", got)
	}

	if err := s.SetLastRead(key, 15); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}
	got, _, _ = s.LastRead(key)
	if got != 15 {
		t.Errorf("LastRead() = %d, want 15", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	s := openTestStore(t)

	// A direct chat and a group with the same numeric id must not share a
	// read position.
	if err := s.SetLastRead(DirectKey(1), 100); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}
	if err := s.SetLastRead(GroupKey(1), 200); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}

	d, _, _ := s.LastRead(DirectKey(1))
	g, _, _ := s.LastRead(GroupKey(1))
	if d != 100 || g != 200 {
		t.Errorf("LastRead = direct %d, group %d; want 100, 200", d, g)
	}
}

func TestLastReadSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetLastRead(DirectKey(9), 42); err != nil {
		t.Fatalf("SetLastRead: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.LastRead(DirectKey(9))
	if err != nil {
		t.Fatalf("LastRead: %v", err)
	}
	if !ok || got != 42 {
		t.Errorf("LastRead after reopen = %d, %v; want 42, true", got, ok)
	}
}

func TestActiveTab(t *testing.T) {
	s := openTestStore(t)

	tab, err := s.ActiveTab()
	if err != nil {
		t.Fatalf("ActiveTab: %v", err)
	}
	if tab != "" {
		t.Errorf("ActiveTab() = %q with no saved tab, want empty", tab)
	}

	if err := s.SetActiveTab("groups"); err != nil {
		t.Fatalf("SetActiveTab: %v", err)
	}
	if err := s.SetActiveTab("chats"); err != nil {
		t.Fatalf("SetActiveTab overwrite: %v", err)
	}

	tab, err = s.ActiveTab()
	if err != nil {
		t.Fatalf("ActiveTab: %v", err)
	}
	if tab != "chats" {
		t.Errorf("ActiveTab() = %q, want %q", tab, "chats")
	}
}
