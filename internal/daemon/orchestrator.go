package daemon

import (
	"context"
	"dropfiles/internal/folder"
	"dropfiles/internal/logger"
	"dropfiles/internal/model"
	"dropfiles/internal/monitor"
	"dropfiles/internal/pipeline"
	"dropfiles/internal/syncer"
	"dropfiles/internal/watcher"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxRecentChanges = 10

// SettingsStore persists the three user settings.
type SettingsStore interface {
	Load() (model.Settings, error)
	Save(settings model.Settings) error
}

// HistoryRecorder stores one row per finished pass.
type HistoryRecorder interface {
	Save(h model.History) error
}

type Options struct {
	WatchLatency   time.Duration
	MaxConcurrency int
	History        HistoryRecorder
	Now            func() time.Time
}

// Orchestrator owns the watched folder, its watcher and the sync timer, and
// runs at most one sync pass at a time. All fields below mu are only touched
// while holding it.
type Orchestrator struct {
	dest    syncer.Destination
	network monitor.Monitor
	storage monitor.Monitor
	store   SettingsStore
	history HistoryRecorder
	latency time.Duration
	maxConc int
	now     func() time.Time
	watch   func(root string) (*watcher.Watcher, error)
	passes  sync.WaitGroup
	timerWG sync.WaitGroup

	mu               sync.Mutex
	started          bool
	baseCtx          context.Context
	cancelFn         context.CancelFunc
	folder           *folder.Folder
	watcher          *watcher.Watcher
	state            model.SyncState
	recent           []model.FileChange
	settings         model.Settings
	isConnected      bool
	storageAvailable bool
	timerStop        chan struct{}
	subscribers      map[chan model.Snapshot]struct{}
}

func NewOrchestrator(dest syncer.Destination, network, storage monitor.Monitor, store SettingsStore, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	o := &Orchestrator{
		dest:        dest,
		network:     network,
		storage:     storage,
		store:       store,
		history:     opts.History,
		latency:     opts.WatchLatency,
		maxConc:     opts.MaxConcurrency,
		now:         opts.Now,
		baseCtx:     context.Background(),
		state:       model.NewSyncState(),
		settings:    model.DefaultSettings(),
		subscribers: make(map[chan model.Snapshot]struct{}),
	}

	o.watch = o.startWatcher

	network.OnChange(o.handleNetworkChange)
	storage.OnChange(o.handleStorageChange)

	return o
}

// Start loads the persisted settings, restores the watched folder and arms
// the timer. A persisted folder that can no longer be resolved is logged and
// left unset.
func (o *Orchestrator) Start(ctx context.Context) error {
	settings, err := o.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}

	o.started = true
	o.settings = settings
	o.isConnected = o.network.Current()
	o.baseCtx, o.cancelFn = context.WithCancel(ctx)
	o.mu.Unlock()

	if settings.FolderToken != "" {
		f, err := folder.Resolve(settings.FolderToken)
		if err != nil {
			logger.Log.Warn("saved folder unavailable",
				zap.String("folder", settings.FolderToken),
				zap.Error(err))
		} else if err := o.swapFolder(f); err != nil {
			logger.Log.Warn("failed to watch saved folder",
				zap.String("folder", f.Path()),
				zap.Error(err))
		}
	}

	o.mu.Lock()
	o.armTimerLocked()
	o.mu.Unlock()

	logger.Log.Info("orchestrator started",
		zap.String("destination", o.dest.Name()),
		zap.Bool("auto_sync", settings.AutoSync),
		zap.Int("interval_seconds", settings.IntervalSeconds))

	o.publish()
	return nil
}

// Stop tears down the watcher and timer and waits for in-flight passes.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	wasStarted := o.started
	o.started = false
	o.stopTimerLocked()
	w := o.watcher
	o.watcher = nil
	cancel := o.cancelFn
	o.mu.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			logger.Log.Warn("failed to close watcher", zap.Error(err))
		}
	}

	o.timerWG.Wait()
	o.passes.Wait()

	if cancel != nil {
		cancel()
	}

	o.mu.Lock()
	for ch := range o.subscribers {
		close(ch)
		delete(o.subscribers, ch)
	}
	o.mu.Unlock()

	if wasStarted {
		logger.Log.Info("orchestrator stopped")
	}
}

// SetWatchedFolder validates f, swaps it in, rebuilds the watcher and
// persists the folder token.
func (o *Orchestrator) SetWatchedFolder(f *folder.Folder) error {
	if f == nil {
		return model.AccessDenied("", folder.ErrNoFolder)
	}

	if err := f.Validate(); err != nil {
		return err
	}

	if err := o.swapFolder(f); err != nil {
		return err
	}

	o.mu.Lock()
	settings := o.settings
	settings.FolderToken = f.Token()
	o.settings = settings
	o.mu.Unlock()

	if err := o.store.Save(settings); err != nil {
		logger.Log.Error("failed to persist watched folder",
			zap.String("folder", f.Path()),
			zap.Error(err))
	}

	logger.Log.Info("watched folder changed",
		zap.String("folder", f.Path()))

	o.publish()
	return nil
}

// swapFolder replaces the folder and its watcher. The old watcher is closed
// before the new one starts; if the new one cannot start, the previous folder
// stays current and its watcher is restarted.
func (o *Orchestrator) swapFolder(f *folder.Folder) error {
	o.mu.Lock()
	old := o.watcher
	o.watcher = nil
	o.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Log.Warn("failed to close previous watcher", zap.Error(err))
		}
	}

	w, err := o.watch(f.Path())
	if err != nil {
		if old != nil {
			if err := old.Start(); err != nil {
				logger.Log.Warn("failed to restart previous watcher",
					zap.String("folder", old.Root()),
					zap.Error(err))
				old = nil
			}
		}

		o.mu.Lock()
		o.watcher = old
		o.mu.Unlock()

		return fmt.Errorf("failed to watch %s: %w", f.Path(), err)
	}

	o.mu.Lock()
	o.folder = f
	o.watcher = w
	o.recent = nil
	o.mu.Unlock()

	return nil
}

func (o *Orchestrator) startWatcher(root string) (*watcher.Watcher, error) {
	w := watcher.New(root, o.latency, o.handleChanges)
	if err := w.Start(); err != nil {
		return nil, err
	}

	return w, nil
}

// ApplySettings updates auto-sync and interval, persists once and rearms the
// timer. The folder token is owned by SetWatchedFolder and is not changed here.
func (o *Orchestrator) ApplySettings(settings model.Settings) error {
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = model.DefaultSyncInterval
	}

	o.mu.Lock()
	settings.FolderToken = o.settings.FolderToken
	o.settings = settings
	o.armTimerLocked()
	o.mu.Unlock()

	logger.Log.Info("settings applied",
		zap.Bool("auto_sync", settings.AutoSync),
		zap.Int("interval_seconds", settings.IntervalSeconds))

	o.publish()

	if err := o.store.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// armTimerLocked stops the current timer and starts a new one when auto-sync
// is enabled.
func (o *Orchestrator) armTimerLocked() {
	o.stopTimerLocked()

	if !o.started || !o.settings.AutoSync {
		return
	}

	stopCh := make(chan struct{})
	o.timerStop = stopCh
	interval := o.settings.Interval()
	ctx := o.baseCtx

	o.timerWG.Add(1)
	go func() {
		defer o.timerWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logger.Log.Debug("sync timer fired")
				o.PerformSync(ctx)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timerStop != nil {
		close(o.timerStop)
		o.timerStop = nil
	}
}

func (o *Orchestrator) handleChanges(changes []model.FileChange) {
	for _, c := range changes {
		logger.Log.Debug("file changed",
			zap.String("path", c.Path),
			zap.String("kind", string(c.Kind)))
	}

	recent := changes
	if len(recent) > maxRecentChanges {
		recent = recent[len(recent)-maxRecentChanges:]
	}

	o.mu.Lock()
	o.recent = append([]model.FileChange(nil), recent...)
	autoSync := o.settings.AutoSync
	ctx := o.baseCtx
	o.mu.Unlock()

	o.publish()

	if autoSync {
		o.triggerSync(ctx)
	}
}

func (o *Orchestrator) handleNetworkChange(connected bool) {
	o.mu.Lock()
	o.isConnected = connected
	autoSync := o.settings.AutoSync && o.started
	ctx := o.baseCtx
	o.mu.Unlock()

	o.publish()

	if connected && autoSync {
		logger.Log.Info("network restored, requesting sync")
		o.triggerSync(ctx)
	}
}

func (o *Orchestrator) handleStorageChange(available bool) {
	o.mu.Lock()
	o.storageAvailable = available
	o.mu.Unlock()
}

// TriggerSync runs a pass in the background. The returned channel is closed
// when the pass (or skip) has finished, or immediately if the orchestrator is
// not running.
func (o *Orchestrator) TriggerSync() <-chan struct{} {
	o.mu.Lock()
	ctx := o.baseCtx
	o.mu.Unlock()

	return o.triggerSync(ctx)
}

func (o *Orchestrator) triggerSync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		close(done)
		return done
	}
	o.passes.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.passes.Done()
		defer close(done)
		o.PerformSync(ctx)
	}()

	return done
}

// PerformSync runs one pass if the gate allows it and no pass is in flight.
// It never returns an error: failures end up in the sync state.
func (o *Orchestrator) PerformSync(ctx context.Context) {
	o.mu.Lock()
	if o.state.IsSyncing() {
		o.mu.Unlock()
		logger.Log.Debug("sync already in progress")
		return
	}
	o.mu.Unlock()

	connected := o.network.Current()
	available := o.storage.Current()

	o.mu.Lock()
	o.isConnected = connected
	o.storageAvailable = available

	if o.state.IsSyncing() {
		o.mu.Unlock()
		logger.Log.Debug("sync already in progress")
		return
	}

	if !o.canSyncLocked() {
		hasFolder := o.folder != nil
		o.mu.Unlock()

		logger.Log.Info("sync skipped",
			zap.Bool("has_folder", hasFolder),
			zap.Bool("connected", connected),
			zap.Bool("storage_available", available))

		o.publish()
		return
	}

	o.state = o.state.StartingSync()
	f := o.folder
	o.mu.Unlock()

	o.publish()

	passID := uuid.NewString()
	startedAt := o.now()

	logger.Log.Info("sync started",
		zap.String("pass", passID),
		zap.String("folder", f.Path()),
		zap.String("destination", o.dest.Name()))

	files, err := o.runPass(ctx, f)
	finishedAt := o.now()

	o.mu.Lock()
	if err == nil {
		o.state = o.state.CompletedSync(finishedAt)
		o.recent = nil
	} else {
		o.state = o.state.FailedSync(model.AsSyncError(err))
	}
	o.mu.Unlock()

	h := model.History{
		PassID:      passID,
		Status:      model.StatusSuccess,
		Source:      f.Path(),
		Destination: o.dest.Name(),
		Files:       files,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}

	if err == nil {
		logger.Log.Info("sync completed",
			zap.String("pass", passID),
			zap.Int("files", files),
			zap.Duration("took", finishedAt.Sub(startedAt)))
	} else {
		syncErr := model.AsSyncError(err)
		h.Status = model.StatusFailure
		h.ErrKind = syncErr.Kind
		h.ErrMsg = syncErr.Error()

		logger.Log.Error("sync failed",
			zap.String("pass", passID),
			zap.String("kind", string(syncErr.Kind)),
			zap.Error(err))
	}

	o.recordHistory(h)
	o.publish()
}

// runPass copies every eligible file and returns how many were enumerated.
func (o *Orchestrator) runPass(ctx context.Context, f *folder.Folder) (int, error) {
	access, err := f.Acquire()
	if err != nil {
		return 0, err
	}

	defer func(access *folder.Access) {
		if err := access.Release(); err != nil {
			logger.Log.Warn("failed to release folder access",
				zap.String("folder", access.Path()),
				zap.Error(err))
		}
	}(access)

	if err := o.dest.Prepare(ctx); err != nil {
		if _, ok := errors.AsType[*model.SyncError](err); ok {
			return 0, err
		}

		return 0, model.StorageUnavailable(err)
	}

	items, err := pipeline.Enumerate(access.Path())
	if err != nil {
		return 0, model.AccessDenied(access.Path(), err)
	}

	var g errgroup.Group
	if o.maxConc > 0 {
		g.SetLimit(o.maxConc)
	}

	for _, item := range items {
		g.Go(func() error {
			if err := o.dest.Replace(ctx, item.RelPath, item.Path); err != nil {
				logger.Log.Warn("copy failed",
					zap.String("path", item.Path),
					zap.Error(err))

				return model.CopyFailed(item.Path, err)
			}

			logger.Log.Debug("copied",
				zap.String("path", item.RelPath))

			return nil
		})
	}

	return len(items), g.Wait()
}

func (o *Orchestrator) recordHistory(h model.History) {
	if o.history == nil {
		return
	}

	if err := o.history.Save(h); err != nil {
		logger.Log.Warn("failed to save history",
			zap.String("pass", h.PassID),
			zap.Error(err))
	}
}

func (o *Orchestrator) canSyncLocked() bool {
	return o.folder != nil && o.isConnected && o.storageAvailable
}

// Snapshot returns a read-only view of the current state.
func (o *Orchestrator) Snapshot() model.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		State:            o.state,
		Presentation:     o.state.PresentationAt(o.now()),
		Destination:      o.dest.Name(),
		IsConnected:      o.isConnected,
		StorageAvailable: o.storageAvailable,
		CanSync:          o.canSyncLocked(),
		RecentChanges:    append([]model.FileChange{}, o.recent...),
		Settings:         o.settings,
	}

	if o.folder != nil {
		snap.WatchedFolder = o.folder.Path()
	}

	return snap
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow subscribers only see the latest snapshot. The returned func
// unsubscribes and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, 1)

	o.mu.Lock()
	o.subscribers[ch] = struct{}{}
	ch <- o.snapshotLocked()
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()

			if _, ok := o.subscribers[ch]; ok {
				delete(o.subscribers, ch)
				close(ch)
			}
		})
	}
}

func (o *Orchestrator) publish() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.subscribers) == 0 {
		return
	}

	snap := o.snapshotLocked()
	for ch := range o.subscribers {
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- snap:
		default:
		}
	}
}
