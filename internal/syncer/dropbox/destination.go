package dropbox

import (
	"context"
	"dropfiles/internal/logger"
	"dropfiles/internal/model"
	"dropfiles/internal/syncer"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"
)

// ClientFactory builds an authorized files client; auth.Dropbox.NewClient in production.
type ClientFactory func(ctx context.Context) (files.Client, error)

// Destination mirrors into "/Documents/dropfiles" of the user's Dropbox.
type Destination struct {
	newClient  ClientFactory
	folderPath string

	mu     sync.Mutex
	client files.Client
}

func NewDestination(newClient ClientFactory) *Destination {
	return &Destination{
		newClient:  newClient,
		folderPath: normalizePath(syncer.Subpath),
	}
}

func (d *Destination) Name() string {
	return "dropbox:" + d.folderPath
}

func (d *Destination) getClient(ctx context.Context) (files.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	client, err := d.newClient(ctx)
	if err != nil {
		return nil, err
	}

	d.client = client
	return client, nil
}

func (d *Destination) Root(ctx context.Context) (string, error) {
	client, err := d.getClient(ctx)
	if err != nil {
		return "", model.StorageUnavailable(err)
	}

	arg := files.NewListFolderArg("")
	arg.Limit = 1

	if _, err := client.ListFolder(arg); err != nil {
		return "", model.StorageUnavailable(fmt.Errorf("failed to query dropbox: %w", err))
	}

	return "dropbox:/", nil
}

func (d *Destination) Prepare(ctx context.Context) error {
	client, err := d.getClient(ctx)
	if err != nil {
		return model.StorageUnavailable(err)
	}

	if err := ensureFolder(client, d.folderPath); err != nil {
		return fmt.Errorf("failed to prepare dropbox folder: %w", err)
	}

	logger.Log.Debug("dropbox folder ready",
		zap.String("folder", d.folderPath))

	return nil
}

// Replace uploads in overwrite mode; missing parent folders are created by Dropbox.
func (d *Destination) Replace(ctx context.Context, relPath, srcPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := d.getClient(ctx)
	if err != nil {
		return model.StorageUnavailable(err)
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	arg := files.NewUploadArg(path.Join(d.folderPath, relPath))
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: "overwrite"}}
	arg.Autorename = false

	if _, err := client.Upload(arg, f); err != nil {
		return fmt.Errorf("failed to upload to dropbox: %w", err)
	}

	return nil
}
