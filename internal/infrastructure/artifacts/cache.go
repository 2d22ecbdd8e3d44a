package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// FileCache persists intermediate stage artifacts as JSON under
// <root>/<slug>/<stage>.json so an interrupted run can resume at the stage
// recorded in the registry instead of restarting at outline.
type FileCache struct {
	root string
}

var _ ports.ArtifactCache = (*FileCache)(nil)

// NewFileCache roots the cache at the configured artifacts directory.
func NewFileCache(root string) *FileCache {
	return &FileCache{root: root}
}

func (c *FileCache) path(slug string, stage domain.Stage) string {
	return filepath.Join(c.root, slug, string(stage)+".json")
}

// Put marshals and writes the artifact atomically.
func (c *FileCache) Put(slug string, stage domain.Stage, artifact any) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", stage, err)
	}

	dir := filepath.Join(c.root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	path := c.path(slug, stage)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s artifact: %w", stage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s artifact: %w", stage, err)
	}
	return nil
}

// Get unmarshals a cached artifact into the target; a missing file is a
// cache miss, not an error.
func (c *FileCache) Get(slug string, stage domain.Stage, into any) (bool, error) {
	data, err := os.ReadFile(c.path(slug, stage))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s artifact: %w", stage, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return false, fmt.Errorf("unmarshal %s artifact: %w", stage, err)
	}
	return true, nil
}
