package model

// Snapshot is the read-only view handed to presentation consumers.
type Snapshot struct {
	State            SyncState    `json:"state"`
	Presentation     Presentation `json:"presentation"`
	WatchedFolder    string       `json:"watched_folder"`
	Destination      string       `json:"destination"`
	IsConnected      bool         `json:"is_connected"`
	StorageAvailable bool         `json:"storage_available"`
	CanSync          bool         `json:"can_sync"`
	RecentChanges    []FileChange `json:"recent_changes"`
	Settings         Settings     `json:"settings"`
}
