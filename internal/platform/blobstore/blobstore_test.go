package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "pets/a/uploads/b", "application/pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 {
		t.Errorf("size = %d, want 5", info.Size)
	}
	if info.Hash == "" {
		t.Error("hash not computed")
	}

	rc, got, err := store.Get(ctx, "pets/a/uploads/b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "hello" {
		t.Errorf("content = %q", content)
	}
	if got.ContentType != "application/pdf" {
		t.Errorf("content type = %q", got.ContentType)
	}

	if err := store.Delete(ctx, "pets/a/uploads/b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(ctx, "pets/a/uploads/b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "pets/a/uploads/b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, store)
}

func TestFSStoreRejectsUnsafeKeys(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../escape", "/abs", "a/../../b", "spaces in key"} {
		if _, err := store.Put(context.Background(), key, "text/plain", strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}
