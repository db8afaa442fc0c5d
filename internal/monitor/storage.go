package monitor

import (
	"context"
	"dropfiles/internal/logger"
	"time"

	"go.uber.org/zap"
)

// RootResolver discovers the destination root, failing when storage is not
// reachable.
type RootResolver interface {
	Root(ctx context.Context) (string, error)
}

// StorageMonitor has no background task: every Current call queries the
// resolver, since availability can change between passes.
type StorageMonitor struct {
	edge
	resolver RootResolver
	timeout  time.Duration
}

func NewStorageMonitor(resolver RootResolver, timeout time.Duration) *StorageMonitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StorageMonitor{
		resolver: resolver,
		timeout:  timeout,
	}
}

func (m *StorageMonitor) Current() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	root, err := m.resolver.Root(ctx)
	available := err == nil

	if m.set(available) {
		logger.Log.Info("storage availability changed",
			zap.Bool("available", available),
			zap.String("root", root),
			zap.Error(err))
	}

	return available
}

// Last returns the most recently observed value without querying.
func (m *StorageMonitor) Last() bool {
	return m.get()
}
