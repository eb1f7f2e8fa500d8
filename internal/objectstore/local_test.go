package objectstore

import (
	"context"
	"io"
	"testing"
)

func TestLocalStorePutOpenRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir(), 0)
	ctx := context.Background()

	if err := store.Put(ctx, "a/b.txt", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r, err := store.Open(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestLocalStoreList(t *testing.T) {
	store := NewLocalStore(t.TempDir(), 0)
	ctx := context.Background()

	for _, name := range []string{"d/1.bin", "d/2.bin"} {
		if err := store.Put(ctx, name, []byte("x")); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
	}
	entries, err := store.List(ctx, "d")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
}

func TestLocalStoreListMissingDir(t *testing.T) {
	store := NewLocalStore(t.TempDir(), 0)
	entries, err := store.List(context.Background(), "does/not/exist")
	if err != nil {
		t.Fatalf("List on missing dir returned error: %v", err)
	}
	if entries != nil {
		t.Fatalf("List on missing dir = %v, want nil", entries)
	}
}

func TestLocalStoreDeleteMissingIsNotError(t *testing.T) {
	store := NewLocalStore(t.TempDir(), 0)
	if err := store.Delete(context.Background(), "nope.txt"); err != nil {
		t.Fatalf("Delete on missing file returned error: %v", err)
	}
}

func TestLocalStoreOpenRange(t *testing.T) {
	store := NewLocalStore(t.TempDir(), 0)
	ctx := context.Background()
	if err := store.Put(ctx, "f.bin", []byte("0123456789")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r, err := store.OpenRange(ctx, "f.bin", 3, 4)
	if err != nil {
		t.Fatalf("OpenRange: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("got %q, want %q", got, "3456")
	}
}
