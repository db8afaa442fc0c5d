// Package folder resolves the user's watched folder from its persisted token
// and hands out scoped read access to it.
package folder

import (
	"dropfiles/internal/model"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNoFolder = errors.New("no watched folder configured")

// Folder is an immutable handle on the watched directory. On this platform the
// persisted token is the absolute path.
type Folder struct {
	path string
}

// Resolve turns a persisted token back into a Folder. An empty token means no
// folder has been chosen yet.
func Resolve(token string) (*Folder, error) {
	if token == "" {
		return nil, ErrNoFolder
	}

	abs, err := filepath.Abs(token)
	if err != nil {
		return nil, model.AccessDenied(token, err)
	}

	f := &Folder{path: abs}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *Folder) Path() string {
	return f.path
}

func (f *Folder) Token() string {
	return f.path
}

// Validate checks the folder still exists and is a readable directory.
func (f *Folder) Validate() error {
	access, err := f.Acquire()
	if err != nil {
		return err
	}

	return access.Release()
}

// Acquire opens the folder for the duration of a pass. The returned Access
// must be released on every exit path.
func (f *Folder) Acquire() (*Access, error) {
	dir, err := os.Open(f.path)
	if err != nil {
		return nil, model.AccessDenied(f.path, err)
	}

	info, err := dir.Stat()
	if err != nil {
		_ = dir.Close()
		return nil, model.AccessDenied(f.path, err)
	}

	if !info.IsDir() {
		_ = dir.Close()
		return nil, model.AccessDenied(f.path, fmt.Errorf("%s is not a directory", f.path))
	}

	return &Access{folder: f, dir: dir}, nil
}

// Access is a scoped access token on a Folder.
type Access struct {
	folder *Folder
	dir    *os.File
}

func (a *Access) Path() string {
	return a.folder.path
}

// Release is safe to call more than once.
func (a *Access) Release() error {
	if a.dir == nil {
		return nil
	}

	err := a.dir.Close()
	a.dir = nil
	return err
}
