package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// exerciseStore runs the shared contract against any backend
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v; want not found", found, err)
	}

	if err := SetJSON(ctx, s, "slots", sample{Name: "alice", Count: 3}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got sample
	found, err := GetJSON(ctx, s, "slots", &got)
	if err != nil || !found {
		t.Fatalf("GetJSON = found %v, err %v", found, err)
	}
	if got.Name != "alice" || got.Count != 3 {
		t.Errorf("GetJSON = %+v", got)
	}

	// overwrite
	if err := s.Set(ctx, "slots", []byte(`{"name":"bob","count":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := GetJSON(ctx, s, "slots", &got); err != nil || got.Name != "bob" {
		t.Errorf("after overwrite got %+v, err %v", got, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, found, _ := s.Get(ctx, "slots"); found {
		t.Error("key survived Clear")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'x'

	v, _, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Errorf("stored value mutated through caller slice: %q", v)
	}
}

func TestGetJSON_DecodeError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "bad", []byte("not json"))

	var dst sample
	if _, err := GetJSON(ctx, s, "bad", &dst); err == nil {
		t.Error("expected decode error")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path, "queueMonitorReport_", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStore_ClearKeepsForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	a, err := NewSQLiteStore(path, "a_", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = a.Set(ctx, "x", []byte("1"))
	_ = a.Close()

	b, err := NewSQLiteStore(path, "b_", zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	_ = b.Set(ctx, "y", []byte("2"))
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	var count int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM kv WHERE key = 'a_x'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("Clear removed keys outside its prefix")
	}
}

func TestSQLiteStore_Keys(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), "p_", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	_ = s.Set(ctx, "tracking", []byte("{}"))
	_ = s.Set(ctx, "dailyAgg", []byte("{}"))

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "dailyAgg" || keys[1] != "tracking" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestSQLiteStore_LockRejectsSecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first, err := NewSQLiteStore(path, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer first.Close()

	if _, err := NewSQLiteStore(path, "", zerolog.Nop()); err == nil {
		t.Fatal("second open of a locked database should fail")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "queueMonitorReport_", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestRedisStore_PrefixesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "qm_", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	mr.Set("other", "keep")
	if err := s.Set(ctx, "favorites", []byte(`["alice"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("qm_favorites") {
		t.Error("expected prefixed key in redis")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !mr.Exists("other") {
		t.Error("Clear removed a key outside the prefix")
	}
}

func TestNewStore_Memory(t *testing.T) {
	s, err := NewStore(context.Background(), Config{Mode: ModeMemory}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("NewStore(memory) = %T", s)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORAGE_MODE", "bogus")
	t.Setenv("DYNAMODB_MODE", "aws")
	cfg := LoadConfig()
	if cfg.Mode != ModeMemory {
		t.Errorf("unknown mode should fall back to memory, got %s", cfg.Mode)
	}
	if cfg.Dynamo.Mode != DynamoModeAWS {
		t.Errorf("Dynamo.Mode = %s", cfg.Dynamo.Mode)
	}
	if cfg.Prefix != "queueMonitorReport_" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
}
