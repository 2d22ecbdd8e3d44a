package sitewriter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// MarkdownWriter writes the final document as the static-site source file
// under <root>/<slug>/index.md.
type MarkdownWriter struct {
	root string
}

var _ ports.OutputSink = (*MarkdownWriter)(nil)

// NewMarkdownWriter roots the writer at the configured sites directory.
func NewMarkdownWriter(root string) *MarkdownWriter {
	return &MarkdownWriter{root: root}
}

// WriteDocument writes atomically so a crash mid-write never leaves a
// truncated index.md for the site builder to pick up.
func (w *MarkdownWriter) WriteDocument(ctx context.Context, slug string, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(w.root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create site dir: %w", err)
	}

	path := filepath.Join(dir, "index.md")
	if err := writeFileAtomic(path, []byte(doc.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
