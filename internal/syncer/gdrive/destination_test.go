package gdrive

import (
	"context"
	"dropfiles/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type driveFile struct {
	name   string
	parent string
	folder bool
}

var (
	nameQuery   = regexp.MustCompile(`name='((?:[^'\\]|\\.)*)'`)
	parentQuery = regexp.MustCompile(`'([^']*)' in parents`)
	unescape    = strings.NewReplacer(`\'`, `'`, `\\`, `\`)
)

// fakeDrive is an in-memory stand-in for the Drive v3 endpoints used by the
// destination: about, files.list, files.create and files.update.
type fakeDrive struct {
	mu      sync.Mutex
	created []string
	files   map[string]driveFile
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.files == nil {
		f.files = make(map[string]driveFile)
	}

	switch {
	case r.URL.Path == "/about":
		_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"emailAddress": "me@example.com"}})
	case strings.HasSuffix(r.URL.Path, "/files") && r.Method == http.MethodGet:
		f.list(w, r.URL.Query().Get("q"))
	case strings.HasSuffix(r.URL.Path, "/files") && r.Method == http.MethodPost:
		f.create(w, r)
	case strings.Contains(r.URL.Path, "/files/") && r.Method == http.MethodPatch:
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_, _ = io.Copy(io.Discard, r.Body)

		if _, ok := f.files[id]; !ok {
			notFound(w)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
	default:
		notFound(w)
	}
}

func (f *fakeDrive) list(w http.ResponseWriter, q string) {
	var name, parent string
	if m := nameQuery.FindStringSubmatch(q); m != nil {
		name = unescape.Replace(m[1])
	}
	if m := parentQuery.FindStringSubmatch(q); m != nil {
		parent = m[1]
	}

	wantFolder := strings.Contains(q, "mimeType='")

	files := []any{}
	for id, file := range f.files {
		if file.name == name && file.parent == parent && file.folder == wantFolder {
			files = append(files, map[string]any{"id": id})
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"files": files})
}

func (f *fakeDrive) create(w http.ResponseWriter, r *http.Request) {
	var meta drive.File
	if mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mediaType, "multipart/") {
		part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
		if err == nil {
			_ = json.NewDecoder(part).Decode(&meta)
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&meta)
	}
	_, _ = io.Copy(io.Discard, r.Body)

	parent := "root"
	if len(meta.Parents) > 0 {
		parent = meta.Parents[0]
	}

	if _, ok := f.files[parent]; parent != "root" && !ok {
		notFound(w)
		return
	}

	f.created = append(f.created, meta.Name)
	id := fmt.Sprintf("id-%d", len(f.created))
	f.files[id] = driveFile{name: meta.Name, parent: parent, folder: meta.MimeType == folderMime}

	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

// remove deletes id and everything below it, as emptying the trash would.
func (f *fakeDrive) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(id)
}

func (f *fakeDrive) removeLocked(id string) {
	delete(f.files, id)
	for child, file := range f.files {
		if file.parent == id {
			f.removeLocked(child)
		}
	}
}

func (f *fakeDrive) lookup(name, parent string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, file := range f.files {
		if file.name == name && file.parent == parent {
			return id
		}
	}

	return ""
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": http.StatusNotFound, "message": "File not found"},
	})
}

func newTestDestination(t *testing.T, h http.Handler) *Destination {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewDestination(func(ctx context.Context) (*drive.Service, error) {
		return drive.NewService(ctx,
			option.WithEndpoint(srv.URL+"/"),
			option.WithHTTPClient(srv.Client()))
	})
}

func TestRootUnavailableWithoutAuth(t *testing.T) {
	d := NewDestination(func(context.Context) (*drive.Service, error) {
		return nil, errors.New("gdrive auth needed")
	})

	_, err := d.Root(context.Background())
	assert.ErrorIs(t, err, model.ErrStorageUnavailable)
}

func TestRoot(t *testing.T) {
	d := newTestDestination(t, &fakeDrive{})

	root, err := d.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gdrive:/", root)
}

func TestPrepareCreatesFolderPath(t *testing.T) {
	fake := &fakeDrive{}
	d := newTestDestination(t, fake)

	require.NoError(t, d.Prepare(context.Background()))
	assert.Equal(t, []string{"Documents", "dropfiles"}, fake.created)
	assert.Equal(t, "id-2", d.rootID)
}

func TestReplaceRequiresPrepare(t *testing.T) {
	d := newTestDestination(t, &fakeDrive{})

	err := d.Replace(context.Background(), "a.txt", "/does/not/matter")
	assert.Error(t, err)
}

func writeSource(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReplaceCreatesThenUpdates(t *testing.T) {
	fake := &fakeDrive{}
	d := newTestDestination(t, fake)
	ctx := context.Background()
	src := writeSource(t, "alpha")

	require.NoError(t, d.Prepare(ctx))
	require.NoError(t, d.Replace(ctx, "docs/a.txt", src))

	docs := fake.lookup("docs", d.rootID)
	require.NotEmpty(t, docs)
	fileID := fake.lookup("a.txt", docs)
	require.NotEmpty(t, fileID)

	require.NoError(t, d.Replace(ctx, "docs/a.txt", src))
	assert.Equal(t, []string{"Documents", "dropfiles", "docs", "a.txt"}, fake.created)
}

func TestReplaceRecoversFromRemovedFolder(t *testing.T) {
	fake := &fakeDrive{}
	d := newTestDestination(t, fake)
	ctx := context.Background()
	src := writeSource(t, "alpha")

	require.NoError(t, d.Prepare(ctx))
	require.NoError(t, d.Replace(ctx, "docs/a.txt", src))

	oldDocs := fake.lookup("docs", d.rootID)
	require.NotEmpty(t, oldDocs)
	fake.remove(oldDocs)

	require.NoError(t, d.Prepare(ctx))
	require.NoError(t, d.Replace(ctx, "docs/a.txt", src))

	docs := fake.lookup("docs", d.rootID)
	require.NotEmpty(t, docs)
	assert.NotEqual(t, oldDocs, docs)
	assert.NotEmpty(t, fake.lookup("a.txt", docs))
}

func TestPrepareResetsCacheWhenRootChanges(t *testing.T) {
	fake := &fakeDrive{}
	d := newTestDestination(t, fake)
	ctx := context.Background()
	src := writeSource(t, "alpha")

	require.NoError(t, d.Prepare(ctx))
	require.NoError(t, d.Replace(ctx, "docs/a.txt", src))

	oldRoot := d.rootID
	fake.remove(oldRoot)

	require.NoError(t, d.Prepare(ctx))
	assert.NotEqual(t, oldRoot, d.rootID)
	assert.Empty(t, d.idCache)

	require.NoError(t, d.Replace(ctx, "docs/a.txt", src))

	docs := fake.lookup("docs", d.rootID)
	require.NotEmpty(t, docs)
	assert.NotEmpty(t, fake.lookup("a.txt", docs))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, []string{"Documents", "dropfiles"}, splitPath("/Documents/dropfiles/"))
	assert.Nil(t, splitPath("/"))
	assert.Equal(t, `it\'s`, escapeName("it's"))
	assert.True(t, isNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, isNotFound(errors.New("boom")))
}
