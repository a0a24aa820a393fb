package sqlite

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), &cfg.SQLiteCfg{Path: filepath.Join(t.TempDir(), "nested", "kv.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Get(ctx, "features:a"); !errors.Is(err, e.ErrKeyNotFound) {
		t.Fatalf("Get on empty store: %v", err)
	}

	if err := s.Set(ctx, "features:a", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "features:a", []byte("v2"), 0); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Get(ctx, "features:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("got %q, want v2", got)
	}

	if err := s.Del(ctx, "features:a", "features:missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(ctx, "features:a"); !errors.Is(err, e.ErrKeyNotFound) {
		t.Fatalf("Get after Del: %v", err)
	}
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "catalog:products", []byte("snapshot"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get(ctx, "catalog:products"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "catalog:products"); !errors.Is(err, e.ErrKeyNotFound) {
		t.Fatalf("Get after expiry: %v", err)
	}
	if vals, err := s.GetMany(ctx, []string{"catalog:products"}); err != nil || vals[0] != nil {
		t.Fatalf("GetMany after expiry: %v %v", vals, err)
	}
}

func TestStore_GetMany(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, k := range []string{"a", "c"} {
		if err := s.Set(ctx, k, []byte("val-"+k), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	vals, err := s.GetMany(ctx, []string{"c", "b", "a"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("len = %d, want 3", len(vals))
	}
	if string(vals[0]) != "val-c" || vals[1] != nil || string(vals[2]) != "val-a" {
		t.Fatalf("unexpected values: %q", vals)
	}

	if vals, err := s.GetMany(ctx, nil); err != nil || vals != nil {
		t.Fatalf("GetMany(nil) = %v, %v", vals, err)
	}
}
