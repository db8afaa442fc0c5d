package model

import "time"

const DefaultSyncInterval = 300

type Settings struct {
	AutoSync        bool   `json:"auto_sync"`
	IntervalSeconds int    `json:"interval_seconds"`
	FolderToken     string `json:"folder_token"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoSync:        true,
		IntervalSeconds: DefaultSyncInterval,
	}
}

func (s Settings) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return DefaultSyncInterval * time.Second
	}

	return time.Duration(s.IntervalSeconds) * time.Second
}

// Setting is one persisted key/value row backing Settings.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}
