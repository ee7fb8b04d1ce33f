package gcs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestPublicURL(t *testing.T) {
	got := publicURL("intellidoc-docs", "documents/abc/123_report.pdf")
	want := "https://storage.googleapis.com/intellidoc-docs/documents/abc/123_report.pdf"
	if got != want {
		t.Fatalf("publicURL = %q, want %q", got, want)
	}
}

func TestURLAppliesPrefix(t *testing.T) {
	s := &Store{bucket: "b", prefix: "documents"}
	if got := s.URL("u/k.pdf"); got != "https://storage.googleapis.com/b/documents/u/k.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestReadCloserWithCancelReleasesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := &readCloserWithCancel{ReadCloser: io.NopCloser(strings.NewReader("x")), cancel: cancel}
	if err := rc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatalf("expected context to be cancelled on Close")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}
