package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
)

// Run exercises a minimal compliance suite against a kv.KV implementation.
// Implementations should return a clean, isolated store from makeKV.
func Run(t *testing.T, makeKV func(t *testing.T) kv.KV) {
	t.Helper()

	s := makeKV(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	key := "kvtest/" + uuid.New().String()

	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, key, []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got, err := s.Get(ctx, key); err != nil || string(got) != "one" {
		t.Fatalf("Get after Put: got=%q err=%v", got, err)
	}

	if err := s.Put(ctx, key, []byte("two")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if got, err := s.Get(ctx, key); err != nil || string(got) != "two" {
		t.Fatalf("Get after overwrite: got=%q err=%v", got, err)
	}

	// Binary values survive unchanged.
	bin := []byte{0, 1, 2, 0xff, '\n'}
	if err := s.Put(ctx, key+"/bin", bin); err != nil {
		t.Fatalf("Put binary: %v", err)
	}
	if got, err := s.Get(ctx, key+"/bin"); err != nil || string(got) != string(bin) {
		t.Fatalf("Get binary: got=%v err=%v", got, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get after Delete: want ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete absent key should be a no-op: %v", err)
	}
	_ = s.Delete(ctx, key+"/bin")
}
