package daemon

import (
	"context"
	"dropfiles/internal/folder"
	"dropfiles/internal/model"
	"dropfiles/internal/syncer"
	"dropfiles/internal/syncer/local"
	"dropfiles/internal/watcher"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	mu       sync.Mutex
	value    bool
	handlers []func(bool)
}

func newFakeMonitor(v bool) *fakeMonitor {
	return &fakeMonitor{value: v}
}

func (m *fakeMonitor) Current() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *fakeMonitor) OnChange(handler func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

func (m *fakeMonitor) set(v bool) {
	m.mu.Lock()
	if m.value == v {
		m.mu.Unlock()
		return
	}

	m.value = v
	handlers := slices.Clone(m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}
}

type memStore struct {
	mu       sync.Mutex
	settings model.Settings
	saves    int
}

func newMemStore(settings model.Settings) *memStore {
	return &memStore{settings: settings}
}

func (s *memStore) Load() (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *memStore) Save(settings model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saves++
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type memHistory struct {
	mu   sync.Mutex
	rows []model.History
}

func (h *memHistory) Save(row model.History) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, row)
	return nil
}

func (h *memHistory) all() []model.History {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.History(nil), h.rows...)
}

// fakeDest records calls instead of copying. Replace blocks on block when set.
type fakeDest struct {
	mu       sync.Mutex
	prepares int
	replaced []string
	failOn   string
	block    chan struct{}
}

func (d *fakeDest) Name() string {
	return "fake:/Documents/dropfiles"
}

func (d *fakeDest) Root(context.Context) (string, error) {
	return "fake:/", nil
}

func (d *fakeDest) Prepare(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepares++
	return nil
}

func (d *fakeDest) Replace(_ context.Context, relPath, _ string) error {
	if d.block != nil {
		<-d.block
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.replaced = append(d.replaced, relPath)

	if relPath == d.failOn {
		return errors.New("disk full")
	}

	return nil
}

func (d *fakeDest) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepares, len(d.replaced)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()

	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func tempDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

type harness struct {
	o       *Orchestrator
	network *fakeMonitor
	storage *fakeMonitor
	store   *memStore
	history *memHistory
	clock   *clock
	src     string
}

func newHarness(t *testing.T, dest syncer.Destination, settings model.Settings) *harness {
	t.Helper()

	h := &harness{
		network: newFakeMonitor(true),
		storage: newFakeMonitor(true),
		store:   newMemStore(settings),
		history: &memHistory{},
		clock:   &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		src:     tempDir(t),
	}

	h.o = NewOrchestrator(dest, h.network, h.storage, h.store, Options{
		WatchLatency: 50 * time.Millisecond,
		History:      h.history,
		Now:          h.clock.Now,
	})
	t.Cleanup(h.o.Stop)

	return h
}

func (h *harness) watch(t *testing.T) {
	t.Helper()

	f, err := folder.Resolve(h.src)
	require.NoError(t, err)
	require.NoError(t, h.o.SetWatchedFolder(f))
}

func TestPerformSyncCopiesEligibleFiles(t *testing.T) {
	root := tempDir(t)
	dest := local.NewDestination(root, false)
	h := newHarness(t, dest, model.DefaultSettings())

	writeFile(t, h.src, "a.txt", "alpha")
	writeFile(t, h.src, ".gitconfig", "[user]")
	writeFile(t, h.src, ".DS_Store", "junk")
	h.watch(t)

	h.o.PerformSync(context.Background())

	snap := h.o.Snapshot()
	require.Equal(t, model.StatusSuccess, snap.State.Status.Kind)
	require.NotNil(t, snap.State.LastSyncDate)
	assert.Equal(t, h.clock.Now(), *snap.State.LastSyncDate)

	assert.FileExists(t, filepath.Join(dest.Dir(), "a.txt"))
	assert.FileExists(t, filepath.Join(dest.Dir(), ".gitconfig"))
	assert.NoFileExists(t, filepath.Join(dest.Dir(), ".DS_Store"))

	rows := h.history.all()
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusSuccess, rows[0].Status)
	assert.Equal(t, 2, rows[0].Files)
	assert.NotEmpty(t, rows[0].PassID)
}

func TestPerformSyncIsIdempotent(t *testing.T) {
	root := tempDir(t)
	dest := local.NewDestination(root, false)
	h := newHarness(t, dest, model.DefaultSettings())

	writeFile(t, h.src, "docs/a.txt", "alpha")
	writeFile(t, h.src, "b.txt", "beta")
	h.watch(t)

	h.o.PerformSync(context.Background())
	h.clock.advance(time.Minute)
	h.o.PerformSync(context.Background())

	snap := h.o.Snapshot()
	assert.Equal(t, model.StatusSuccess, snap.State.Status.Kind)

	got, err := os.ReadFile(filepath.Join(dest.Dir(), "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	entries, err := os.ReadDir(dest.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPerformSyncGate(t *testing.T) {
	tests := map[string]struct {
		network   bool
		storage   bool
		setFolder bool
	}{
		"offline":             {network: false, storage: true, setFolder: true},
		"storage unavailable": {network: true, storage: false, setFolder: true},
		"no folder":           {network: true, storage: true, setFolder: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dest := &fakeDest{}
			h := newHarness(t, dest, model.DefaultSettings())
			writeFile(t, h.src, "a.txt", "alpha")
			if tt.setFolder {
				h.watch(t)
			}

			h.network.set(tt.network)
			h.storage.set(tt.storage)

			before := h.o.Snapshot().State
			h.o.PerformSync(context.Background())

			snap := h.o.Snapshot()
			assert.Equal(t, before, snap.State)
			assert.False(t, snap.CanSync)

			prepares, replaced := dest.counts()
			assert.Zero(t, prepares)
			assert.Zero(t, replaced)
			assert.Empty(t, h.history.all())
		})
	}
}

func TestPerformSyncStorageFailureKeepsLastSyncDate(t *testing.T) {
	root := tempDir(t)
	dest := local.NewDestination(root, false)
	h := newHarness(t, dest, model.DefaultSettings())

	writeFile(t, h.src, "a.txt", "alpha")
	h.watch(t)

	h.o.PerformSync(context.Background())
	first := h.o.Snapshot().State.LastSyncDate
	require.NotNil(t, first)

	require.NoError(t, os.RemoveAll(root))
	h.clock.advance(time.Minute)
	h.o.PerformSync(context.Background())

	state := h.o.Snapshot().State
	require.Equal(t, model.StatusFailure, state.Status.Kind)
	assert.ErrorIs(t, state.Status.Err, model.ErrStorageUnavailable)
	assert.Equal(t, first, state.LastSyncDate)
	assert.Equal(t, "Cloud storage not available", h.o.Snapshot().Presentation.Text)
}

func TestPerformSyncCopyFailureJoinsAll(t *testing.T) {
	dest := &fakeDest{failOn: "bad.txt"}
	h := newHarness(t, dest, model.DefaultSettings())

	for i := range 5 {
		writeFile(t, h.src, fmt.Sprintf("file%d.txt", i), "x")
	}
	writeFile(t, h.src, "bad.txt", "x")
	h.watch(t)

	h.o.PerformSync(context.Background())

	state := h.o.Snapshot().State
	require.Equal(t, model.StatusFailure, state.Status.Kind)
	assert.ErrorIs(t, state.Status.Err, model.ErrCopyFailed)
	assert.Equal(t, filepath.Join(h.src, "bad.txt"), state.Status.Err.Path)
	assert.Nil(t, state.LastSyncDate)

	_, replaced := dest.counts()
	assert.Equal(t, 6, replaced)

	rows := h.history.all()
	require.Len(t, rows, 1)
	assert.Equal(t, model.KindCopyFailed, rows[0].ErrKind)
}

func TestPerformSyncMaxConcurrency(t *testing.T) {
	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	h.o.maxConc = 2

	for i := range 10 {
		writeFile(t, h.src, fmt.Sprintf("file%d.txt", i), "x")
	}
	h.watch(t)

	h.o.PerformSync(context.Background())

	assert.Equal(t, model.StatusSuccess, h.o.Snapshot().State.Status.Kind)
	_, replaced := dest.counts()
	assert.Equal(t, 10, replaced)
}

func TestPerformSyncAccessDenied(t *testing.T) {
	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	h.watch(t)

	require.NoError(t, os.RemoveAll(h.src))
	h.o.PerformSync(context.Background())

	state := h.o.Snapshot().State
	require.Equal(t, model.StatusFailure, state.Status.Kind)
	assert.ErrorIs(t, state.Status.Err, model.ErrAccessDenied)
}

func TestPerformSyncSkipsUnreadableSubfolder(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}

	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	writeFile(t, h.src, "a.txt", "alpha")
	writeFile(t, h.src, "private/b.txt", "beta")

	private := filepath.Join(h.src, "private")
	require.NoError(t, os.Chmod(private, 0))
	t.Cleanup(func() { _ = os.Chmod(private, 0755) })

	h.watch(t)
	h.o.PerformSync(context.Background())

	require.Equal(t, model.StatusSuccess, h.o.Snapshot().State.Status.Kind)
	_, replaced := dest.counts()
	assert.Equal(t, 1, replaced)
}

func TestPerformSyncConcurrentCallsRunOnePass(t *testing.T) {
	dest := &fakeDest{block: make(chan struct{})}
	h := newHarness(t, dest, model.DefaultSettings())
	writeFile(t, h.src, "a.txt", "alpha")
	h.watch(t)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		h.o.PerformSync(context.Background())
	}()

	require.Eventually(t, func() bool {
		return h.o.Snapshot().State.IsSyncing()
	}, 2*time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			h.o.PerformSync(context.Background())
		})
	}
	wg.Wait()

	close(dest.block)
	<-firstDone

	prepares, replaced := dest.counts()
	assert.Equal(t, 1, prepares)
	assert.Equal(t, 1, replaced)
	assert.Len(t, h.history.all(), 1)
}

func TestRecentChangesBoundedAndClearedOnSuccess(t *testing.T) {
	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	h.watch(t)

	changes := make([]model.FileChange, 15)
	for i := range changes {
		changes[i] = model.FileChange{Path: fmt.Sprintf("/f%d", i), Kind: model.ChangeModified}
	}
	h.o.handleChanges(changes)

	recent := h.o.Snapshot().RecentChanges
	require.Len(t, recent, maxRecentChanges)
	assert.Equal(t, "/f5", recent[0].Path)
	assert.Equal(t, "/f14", recent[9].Path)

	h.o.PerformSync(context.Background())
	assert.Empty(t, h.o.Snapshot().RecentChanges)
}

func TestSetWatchedFolder(t *testing.T) {
	h := newHarness(t, &fakeDest{}, model.DefaultSettings())
	h.watch(t)

	snap := h.o.Snapshot()
	assert.Equal(t, h.src, snap.WatchedFolder)
	saved, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, h.src, saved.FolderToken)
	assert.Equal(t, 1, h.store.saveCount())

	other := tempDir(t)
	f, err := folder.Resolve(other)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(other))

	err = h.o.SetWatchedFolder(f)
	assert.ErrorIs(t, err, model.ErrAccessDenied)
	assert.Equal(t, h.src, h.o.Snapshot().WatchedFolder)

	assert.ErrorIs(t, h.o.SetWatchedFolder(nil), model.ErrAccessDenied)
}

func TestSetWatchedFolderKeepsPreviousWhenWatchFails(t *testing.T) {
	h := newHarness(t, &fakeDest{}, model.DefaultSettings())
	h.watch(t)

	next, err := folder.Resolve(tempDir(t))
	require.NoError(t, err)

	h.o.watch = func(string) (*watcher.Watcher, error) {
		return nil, errors.New("too many open files")
	}

	err = h.o.SetWatchedFolder(next)
	require.Error(t, err)

	assert.Equal(t, h.src, h.o.Snapshot().WatchedFolder)
	saved, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, h.src, saved.FolderToken)
	assert.Equal(t, 1, h.store.saveCount())

	h.o.mu.Lock()
	w := h.o.watcher
	h.o.mu.Unlock()

	require.NotNil(t, w)
	assert.True(t, w.IsRunning())
	assert.Equal(t, h.src, w.Root())
}

func TestApplySettingsPersistsOnce(t *testing.T) {
	h := newHarness(t, &fakeDest{}, model.DefaultSettings())
	require.NoError(t, h.o.Start(context.Background()))
	h.watch(t)
	saves := h.store.saveCount()

	require.NoError(t, h.o.ApplySettings(model.Settings{AutoSync: false, IntervalSeconds: 60}))

	assert.Equal(t, saves+1, h.store.saveCount())
	got, err := h.store.Load()
	require.NoError(t, err)
	assert.False(t, got.AutoSync)
	assert.Equal(t, 60, got.IntervalSeconds)
	assert.Equal(t, h.src, got.FolderToken)

	h.o.mu.Lock()
	assert.Nil(t, h.o.timerStop)
	h.o.mu.Unlock()

	require.NoError(t, h.o.ApplySettings(model.Settings{AutoSync: true, IntervalSeconds: 120}))

	h.o.mu.Lock()
	assert.NotNil(t, h.o.timerStop)
	h.o.mu.Unlock()
}

func TestTimerTriggersSync(t *testing.T) {
	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	writeFile(t, h.src, "a.txt", "alpha")
	require.NoError(t, h.o.Start(context.Background()))
	h.watch(t)

	require.NoError(t, h.o.ApplySettings(model.Settings{AutoSync: true, IntervalSeconds: 1}))

	require.Eventually(t, func() bool {
		return h.o.Snapshot().State.Status.Kind == model.StatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherTriggersSync(t *testing.T) {
	root := tempDir(t)
	dest := local.NewDestination(root, false)
	h := newHarness(t, dest, model.DefaultSettings())

	h.store.settings.FolderToken = h.src
	require.NoError(t, h.o.Start(context.Background()))
	require.Equal(t, h.src, h.o.Snapshot().WatchedFolder)

	writeFile(t, h.src, "new.txt", "fresh")

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dest.Dir(), "new.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return h.o.Snapshot().State.Status.Kind == model.StatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNetworkReconnectTriggersSync(t *testing.T) {
	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	writeFile(t, h.src, "a.txt", "alpha")
	h.network.set(false)

	require.NoError(t, h.o.Start(context.Background()))
	h.watch(t)
	assert.False(t, h.o.Snapshot().IsConnected)

	h.network.set(true)

	require.Eventually(t, func() bool {
		return h.o.Snapshot().State.Status.Kind == model.StatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

func TestTriggerSyncBeforeStartIsNoop(t *testing.T) {
	dest := &fakeDest{}
	h := newHarness(t, dest, model.DefaultSettings())
	h.watch(t)

	select {
	case <-h.o.TriggerSync():
	case <-time.After(time.Second):
		t.Fatal("trigger did not return")
	}

	prepares, _ := dest.counts()
	assert.Zero(t, prepares)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, &fakeDest{}, model.DefaultSettings())
	ch, unsubscribe := h.o.Subscribe()

	first := <-ch
	assert.Equal(t, model.StatusIdle, first.State.Status.Kind)

	writeFile(t, h.src, "a.txt", "alpha")
	h.watch(t)
	h.o.PerformSync(context.Background())

	require.Eventually(t, func() bool {
		select {
		case snap := <-ch:
			return snap.State.Status.Kind == model.StatusSuccess
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}
