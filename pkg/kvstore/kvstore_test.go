package kvstore

import (
	"path/filepath"
	"sort"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	if _, ok, err := s.Load("missing"); err != nil || ok {
		t.Fatalf("Load(missing) = ok=%v err=%v, want miss", ok, err)
	}

	if err := s.Save("a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Save(a): %v", err)
	}
	if err := s.Save("b", []byte("second")); err != nil {
		t.Fatalf("Save(b): %v", err)
	}

	value, ok, err := s.Load("a")
	if err != nil || !ok {
		t.Fatalf("Load(a) = ok=%v err=%v", ok, err)
	}
	if string(value) != `{"x":1}` {
		t.Errorf("Load(a) = %q", value)
	}

	// overwrite
	if err := s.Save("a", []byte("updated")); err != nil {
		t.Fatalf("Save(a) overwrite: %v", err)
	}
	value, _, _ = s.Load("a")
	if string(value) != "updated" {
		t.Errorf("Load(a) after overwrite = %q", value)
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v, want [a b]", keys)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete(a): %v", err)
	}
	if _, ok, _ := s.Load("a"); ok {
		t.Error("Load(a) after delete should miss")
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aibridge.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aibridge.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Save("provider.openai", []byte(`{"apiKey":"k"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Load("provider.openai")
	if err != nil || !ok {
		t.Fatalf("Load after reopen = ok=%v err=%v", ok, err)
	}
	if string(value) != `{"apiKey":"k"}` {
		t.Errorf("Load after reopen = %q", value)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("original")
	s.Save("k", buf)
	buf[0] = 'X'

	value, _, _ := s.Load("k")
	if string(value) != "original" {
		t.Errorf("stored value aliased caller buffer: %q", value)
	}
}
