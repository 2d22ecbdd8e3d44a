package sitewriter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"NichePress/internal/domain"
)

func TestWriteDocument(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writer := NewMarkdownWriter(root)

	doc := domain.Document{NicheSlug: "pickleball-shoes", Markdown: "# Pickleball Shoes\n\nbody\n"}
	path, err := writer.WriteDocument(context.Background(), "pickleball-shoes", doc)
	if err != nil {
		t.Fatalf("WriteDocument error: %v", err)
	}

	want := filepath.Join(root, "pickleball-shoes", "index.md")
	if path != want {
		t.Fatalf("unexpected path: %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(data) != doc.Markdown {
		t.Fatalf("content mismatch: %q", string(data))
	}

	// No temp file may survive the atomic rename.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestWriteDocumentOverwrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writer := NewMarkdownWriter(root)
	ctx := context.Background()

	if _, err := writer.WriteDocument(ctx, "some-niche", domain.Document{Markdown: "old"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	path, err := writer.WriteDocument(ctx, "some-niche", domain.Document{Markdown: "new"})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Fatalf("expected overwrite, got %q", string(data))
	}
}

func TestWriteDocumentCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := NewMarkdownWriter(t.TempDir())
	if _, err := writer.WriteDocument(ctx, "some-niche", domain.Document{Markdown: "x"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
