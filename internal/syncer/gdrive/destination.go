package gdrive

import (
	"context"
	"dropfiles/internal/logger"
	"dropfiles/internal/model"
	"dropfiles/internal/syncer"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
)

const folderMime = "application/vnd.google-apps.folder"

// ServiceFactory builds an authorized Drive client; auth.GDrive.NewService in production.
type ServiceFactory func(ctx context.Context) (*drive.Service, error)

// Destination mirrors into "My Drive/Documents/dropfiles".
type Destination struct {
	newService ServiceFactory

	// dirMu serializes folder creation so concurrent uploads into the same
	// directory do not create duplicate folders.
	dirMu sync.Mutex

	mu      sync.RWMutex
	svc     *drive.Service
	rootID  string
	idCache map[string]string
}

func NewDestination(newService ServiceFactory) *Destination {
	return &Destination{
		newService: newService,
		idCache:    make(map[string]string),
	}
}

func (d *Destination) Name() string {
	return "gdrive:/" + syncer.Subpath
}

func (d *Destination) service(ctx context.Context) (*drive.Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc != nil {
		return d.svc, nil
	}

	svc, err := d.newService(ctx)
	if err != nil {
		return nil, err
	}

	d.svc = svc
	return svc, nil
}

func (d *Destination) Root(ctx context.Context) (string, error) {
	svc, err := d.service(ctx)
	if err != nil {
		return "", model.StorageUnavailable(err)
	}

	about, err := svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return "", model.StorageUnavailable(fmt.Errorf("failed to query drive: %w", err))
	}

	if about.User != nil {
		logger.Log.Debug("gdrive root resolved",
			zap.String("user", about.User.EmailAddress))
	}

	return "gdrive:/", nil
}

func (d *Destination) Prepare(ctx context.Context) error {
	svc, err := d.service(ctx)
	if err != nil {
		return model.StorageUnavailable(err)
	}

	d.dirMu.Lock()
	defer d.dirMu.Unlock()

	rootID, err := ensureFolderPath(ctx, svc, syncer.Subpath)
	if err != nil {
		return fmt.Errorf("failed to prepare gdrive folder: %w", err)
	}

	d.mu.Lock()
	if d.rootID != rootID {
		// IDs resolved under a previous root folder are no longer reachable
		clear(d.idCache)
		d.rootID = rootID
	}
	d.mu.Unlock()

	logger.Log.Debug("gdrive folder ready",
		zap.String("folder", syncer.Subpath),
		zap.String("folder_id", rootID))

	return nil
}

func (d *Destination) Replace(ctx context.Context, relPath, srcPath string) error {
	svc, err := d.service(ctx)
	if err != nil {
		return model.StorageUnavailable(err)
	}

	parentID, err := d.ensureParentFolders(ctx, svc, relPath)
	if err != nil {
		return fmt.Errorf("failed to create parent folders: %w", err)
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	fileName := path.Base(relPath)

	existingID := d.getCachedID(relPath)
	if existingID == "" {
		existingID, err = findFile(ctx, svc, fileName, parentID)
		if err != nil {
			return fmt.Errorf("failed to look up file: %w", err)
		}
	}

	if existingID != "" {
		_, err = svc.Files.Update(existingID, &drive.File{}).Media(f).Context(ctx).Do()
		if err == nil {
			d.setCachedID(relPath, existingID)
			return nil
		}

		if !isNotFound(err) {
			return fmt.Errorf("failed to update file: %w", err)
		}

		// stale cache entry; the remote copy was removed
		d.deleteCachedID(relPath)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	id, err := createFile(ctx, svc, fileName, parentID, f)
	if isNotFound(err) {
		// a cached parent folder was removed remotely
		d.forgetParents(relPath)

		parentID, err = d.ensureParentFolders(ctx, svc, relPath)
		if err != nil {
			return fmt.Errorf("failed to create parent folders: %w", err)
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}

		id, err = createFile(ctx, svc, fileName, parentID, f)
	}
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	d.setCachedID(relPath, id)
	return nil
}

func (d *Destination) ensureParentFolders(ctx context.Context, svc *drive.Service, relPath string) (string, error) {
	d.dirMu.Lock()
	defer d.dirMu.Unlock()

	d.mu.RLock()
	parentID := d.rootID
	d.mu.RUnlock()

	if parentID == "" {
		return "", errors.New("gdrive folder not prepared")
	}

	dir := path.Dir(relPath)
	if dir == "." || dir == "" {
		return parentID, nil
	}

	parts := strings.Split(dir, "/")
	for i, part := range parts {
		cacheKey := dirKey(strings.Join(parts[:i+1], "/"))

		if id := d.getCachedID(cacheKey); id != "" {
			parentID = id
			continue
		}

		id, err := findOrCreateFolder(ctx, svc, part, parentID)
		if err != nil {
			return "", err
		}

		d.setCachedID(cacheKey, id)
		parentID = id
	}

	return parentID, nil
}

func (d *Destination) getCachedID(key string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.idCache[key]
}

func (d *Destination) setCachedID(key, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idCache[key] = id
}

func (d *Destination) deleteCachedID(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.idCache, key)
}

func (d *Destination) forgetParents(relPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for dir := path.Dir(relPath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		delete(d.idCache, dirKey(dir))
	}
}

func ensureFolderPath(ctx context.Context, svc *drive.Service, folderPath string) (string, error) {
	parentID := "root"
	for _, part := range splitPath(folderPath) {
		id, err := findOrCreateFolder(ctx, svc, part, parentID)
		if err != nil {
			return "", err
		}

		parentID = id
	}

	return parentID, nil
}

func findOrCreateFolder(ctx context.Context, svc *drive.Service, name, parentID string) (string, error) {
	id, err := findFolder(ctx, svc, name, parentID)
	if err != nil {
		return "", err
	}

	if id != "" {
		return id, nil
	}

	return createFolder(ctx, svc, name, parentID)
}

func findFolder(ctx context.Context, svc *drive.Service, name, parentID string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false", escapeName(name), parentID, folderMime)
	return firstID(ctx, svc, q)
}

func findFile(ctx context.Context, svc *drive.Service, name, parentID string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and mimeType!='%s' and trashed=false", escapeName(name), parentID, folderMime)
	return firstID(ctx, svc, q)
}

func firstID(ctx context.Context, svc *drive.Service, q string) (string, error) {
	list, err := svc.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}

	if len(list.Files) == 0 {
		return "", nil
	}

	return list.Files[0].Id, nil
}

func createFile(ctx context.Context, svc *drive.Service, name, parentID string, media io.Reader) (string, error) {
	created, err := svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).Media(media).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return created.Id, nil
}

func createFolder(ctx context.Context, svc *drive.Service, name, parentID string) (string, error) {
	f := &drive.File{
		Name:     name,
		MimeType: folderMime,
		Parents:  []string{parentID},
	}

	created, err := svc.Files.Create(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	return created.Id, nil
}
