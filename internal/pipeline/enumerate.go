package pipeline

import (
	"dropfiles/internal/logger"
	"dropfiles/internal/model"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Enumerate lists every eligible regular file under root. Directories whose
// names fail IsEligible (e.g. .git) are not descended into. Entries below root
// that cannot be read are logged and skipped; only a failure on root itself is
// returned.
func Enumerate(root string) ([]model.FileItem, error) {
	var items []model.FileItem

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return skipUnreadable(path, d, err)
		}

		if path == root {
			return nil
		}

		if !IsEligible(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return skipUnreadable(path, d, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}

		items = append(items, model.FileItem{
			Path:         path,
			RelPath:      filepath.ToSlash(rel),
			LastModified: info.ModTime(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", root, err)
	}

	return items, nil
}

func skipUnreadable(path string, d fs.DirEntry, err error) error {
	if !errors.Is(err, fs.ErrNotExist) {
		logger.Log.Warn("skipping unreadable entry",
			zap.String("path", path),
			zap.Error(err))
	}

	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}

	return nil
}
