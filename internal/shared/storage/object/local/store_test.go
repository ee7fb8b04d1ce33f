package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"intellidoc-backend/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), "http://localhost:5000/files/")

	blob, err := store.Save(ctx, "user-1", "notes.txt", "", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if blob.Size != int64(len("hello world")) {
		t.Fatalf("unexpected size %d", blob.Size)
	}
	if !strings.HasPrefix(blob.ContentType, "text/plain") {
		t.Fatalf("unexpected content type %q", blob.ContentType)
	}
	if blob.Provider != "local" {
		t.Fatalf("unexpected provider %q", blob.Provider)
	}
	if got := store.URL(blob.Key); got != "http://localhost:5000/files/"+blob.Key {
		t.Fatalf("unexpected url %q", got)
	}

	rc, err := store.Open(ctx, blob.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello world" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, blob.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, blob.Key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, blob.Key); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir(), "")
	if _, err := store.Open(context.Background(), "../secret"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
