package syncer

import (
	"context"
	"dropfiles/internal/config"
	"path"
)

// Subpath is appended to every destination root to form the folder the
// watched tree is mirrored into.
var Subpath = path.Join("Documents", config.AppName)

// Destination is a cloud-backed target the watched folder is copied into.
type Destination interface {
	// Name identifies the destination in logs and history, e.g. "gdrive:/Documents/dropfiles".
	Name() string
	// Root discovers the destination root. It fails with a
	// model.ErrStorageUnavailable error when the storage cannot be reached.
	Root(ctx context.Context) (string, error)
	// Prepare creates the destination folder if needed. It is idempotent.
	Prepare(ctx context.Context) error
	// Replace removes any existing copy of relPath and copies srcPath in its place.
	Replace(ctx context.Context, relPath, srcPath string) error
}
