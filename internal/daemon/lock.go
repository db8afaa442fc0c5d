package daemon

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

var ErrAlreadyRunning = errors.New("another dropfiles daemon is already running")

// InstanceLock keeps a second daemon from watching the same config dir.
type InstanceLock struct {
	flock *flock.Flock
}

func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{flock: flock.New(path)}
}

func (l *InstanceLock) Lock() error {
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err)
	}

	if !locked {
		return ErrAlreadyRunning
	}

	return nil
}

func (l *InstanceLock) Unlock() error {
	// only the holder removes the lock file
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}

	return os.Remove(l.flock.Path())
}
