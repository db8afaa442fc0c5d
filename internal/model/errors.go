package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

type ErrorKind string

const (
	KindAccessDenied       ErrorKind = "ACCESS_DENIED"
	KindStorageUnavailable ErrorKind = "STORAGE_UNAVAILABLE"
	KindNetworkUnavailable ErrorKind = "NETWORK_UNAVAILABLE"
	KindCopyFailed         ErrorKind = "COPY_FAILED"
)

var (
	ErrAccessDenied       = &SyncError{Kind: KindAccessDenied}
	ErrStorageUnavailable = &SyncError{Kind: KindStorageUnavailable}
	ErrNetworkUnavailable = &SyncError{Kind: KindNetworkUnavailable}
	ErrCopyFailed         = &SyncError{Kind: KindCopyFailed}
)

// SyncError is the reason carried by a failed pass. errors.Is matches on Kind,
// so callers can compare against the Err* sentinels.
type SyncError struct {
	Kind  ErrorKind
	Path  string
	Cause error
}

func AccessDenied(path string, cause error) *SyncError {
	return &SyncError{Kind: KindAccessDenied, Path: path, Cause: cause}
}

func StorageUnavailable(cause error) *SyncError {
	return &SyncError{Kind: KindStorageUnavailable, Cause: cause}
}

func CopyFailed(path string, cause error) *SyncError {
	return &SyncError{Kind: KindCopyFailed, Path: path, Cause: cause}
}

// Error returns the short, user-facing text for the failure.
func (e *SyncError) Error() string {
	switch e.Kind {
	case KindAccessDenied:
		return fmt.Sprintf("Cannot access %s", filepath.Base(e.Path))
	case KindStorageUnavailable:
		return "Cloud storage not available"
	case KindNetworkUnavailable:
		return "Network connection required"
	case KindCopyFailed:
		if e.Cause != nil {
			return fmt.Sprintf("Failed to copy %s: %v", filepath.Base(e.Path), e.Cause)
		}
		return fmt.Sprintf("Failed to copy %s", filepath.Base(e.Path))
	default:
		if e.Cause != nil {
			return fmt.Sprintf("Sync failed: %v", e.Cause)
		}
		return "Sync failed"
	}
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// AsSyncError maps any pass error onto a SyncError. Unknown errors become a
// generic failure that keeps the underlying message.
func AsSyncError(err error) *SyncError {
	if err == nil {
		return nil
	}

	if syncErr, ok := errors.AsType[*SyncError](err); ok {
		return syncErr
	}

	return &SyncError{Kind: "", Cause: err}
}

func (e *SyncError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    ErrorKind `json:"kind"`
		Path    string    `json:"path,omitempty"`
		Message string    `json:"message"`
	}{e.Kind, e.Path, e.Error()})
}
