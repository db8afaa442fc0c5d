package local

import (
	"context"
	"dropfiles/internal/model"
	"dropfiles/internal/syncer"
	"dropfiles/internal/util"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Destination mirrors into a folder kept in sync by a desktop cloud client
// (iCloud Drive, Google Drive for desktop, OneDrive...).
type Destination struct {
	root   string
	staged bool
}

func NewDestination(root string, staged bool) *Destination {
	return &Destination{root: root, staged: staged}
}

func (d *Destination) Name() string {
	return "local:" + d.Dir()
}

// Dir is the concrete folder files are copied into.
func (d *Destination) Dir() string {
	return filepath.Join(d.root, filepath.FromSlash(syncer.Subpath))
}

func (d *Destination) Root(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", model.StorageUnavailable(err)
	}

	if d.root == "" {
		return "", model.StorageUnavailable(errors.New("no destination root configured"))
	}

	info, err := os.Stat(d.root)
	if err != nil {
		return "", model.StorageUnavailable(err)
	}

	if !info.IsDir() {
		return "", model.StorageUnavailable(fmt.Errorf("%s is not a directory", d.root))
	}

	return d.root, nil
}

func (d *Destination) Prepare(ctx context.Context) error {
	if _, err := d.Root(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(d.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}

	return nil
}

func (d *Destination) Replace(ctx context.Context, relPath, srcPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(d.Dir(), filepath.FromSlash(relPath))
	if d.staged {
		return util.StagedReplaceFile(dst, srcPath)
	}

	return util.ReplaceFile(dst, srcPath)
}
