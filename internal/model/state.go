package model

import (
	"time"

	"github.com/dustin/go-humanize"
)

type StatusKind string

const (
	StatusIdle    StatusKind = "IDLE"
	StatusSyncing StatusKind = "SYNCING"
	StatusSuccess StatusKind = "SUCCESS"
	StatusFailure StatusKind = "FAILURE"
)

// SyncStatus is a tagged union: At is only set for StatusSuccess and Err only
// for StatusFailure.
type SyncStatus struct {
	Kind StatusKind `json:"kind"`
	At   *time.Time `json:"at,omitempty"`
	Err  *SyncError `json:"error,omitempty"`
}

// SyncState is an immutable snapshot. Transitions return a new value and
// never touch the receiver.
type SyncState struct {
	Status       SyncStatus `json:"status"`
	LastSyncDate *time.Time `json:"last_sync_date,omitempty"`
}

func NewSyncState() SyncState {
	return SyncState{Status: SyncStatus{Kind: StatusIdle}}
}

func (s SyncState) StartingSync() SyncState {
	return SyncState{
		Status:       SyncStatus{Kind: StatusSyncing},
		LastSyncDate: s.LastSyncDate,
	}
}

func (s SyncState) CompletedSync(at time.Time) SyncState {
	return SyncState{
		Status:       SyncStatus{Kind: StatusSuccess, At: &at},
		LastSyncDate: &at,
	}
}

func (s SyncState) FailedSync(err *SyncError) SyncState {
	return SyncState{
		Status:       SyncStatus{Kind: StatusFailure, Err: err},
		LastSyncDate: s.LastSyncDate,
	}
}

func (s SyncState) IsSyncing() bool {
	return s.Status.Kind == StatusSyncing
}

type Presentation struct {
	Icon  string `json:"icon"`
	Text  string `json:"text"`
	Color string `json:"color"`
}

// PresentationAt projects the state for display. now is only used to render
// the relative time of the last successful sync.
func (s SyncState) PresentationAt(now time.Time) Presentation {
	switch s.Status.Kind {
	case StatusSyncing:
		return Presentation{Icon: "icloud.and.arrow.up.and.arrow.down", Text: "Syncing...", Color: "blue"}
	case StatusSuccess:
		text := "Last sync: just now"
		if s.Status.At != nil && now.Sub(*s.Status.At) >= time.Second {
			text = "Last sync: " + humanize.RelTime(*s.Status.At, now, "ago", "from now")
		}
		return Presentation{Icon: "icloud.fill", Text: text, Color: "green"}
	case StatusFailure:
		text := "Sync failed"
		if s.Status.Err != nil {
			text = s.Status.Err.Error()
		}
		return Presentation{Icon: "icloud.slash", Text: text, Color: "red"}
	default:
		return Presentation{Icon: "icloud", Text: "Ready to sync", Color: "primary"}
	}
}
