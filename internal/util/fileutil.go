package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReplaceFile removes dst if present and copies src over it. There is no
// staging: a crash mid-copy can leave dst missing or truncated.
func ReplaceFile(dst, src string) error {
	if err := RemoveIfExists(dst); err != nil {
		return err
	}

	return copyWith(dst, src, func(dst string, r io.Reader) error {
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("failed to create parent dir: %w", err)
		}

		f, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}

		if _, err := io.Copy(f, r); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write: %w", err)
		}

		return f.Close()
	})
}

// StagedReplaceFile copies src to a temp name next to dst and renames it into
// place, so dst is always either the old or the new content.
func StagedReplaceFile(dst, src string) error {
	return copyWith(dst, src, AtomicWrite)
}

func copyWith(dst, src string, write func(string, io.Reader) error) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open src: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat src: %w", err)
	}

	if err := write(dst, f); err != nil {
		return err
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set mod time: %w", err)
	}

	return nil
}

func AtomicWrite(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.dropfiles.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}
