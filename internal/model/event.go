package model

import "time"

type ChangeKind string

const (
	ChangeCreated  ChangeKind = "CREATED"
	ChangeModified ChangeKind = "MODIFIED"
	ChangeDeleted  ChangeKind = "DELETED"
)

// FileChange is a single coalesced filesystem notification. It only feeds
// logging and the recent-changes list; every pass rescans the whole folder.
type FileChange struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

// FileItem is one eligible file found while enumerating the watched folder.
type FileItem struct {
	Path         string    `json:"path"`
	RelPath      string    `json:"rel_path"`
	LastModified time.Time `json:"last_modified"`
}
