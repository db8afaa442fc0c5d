package repository

import (
	"dropfiles/internal/db"
	"dropfiles/internal/model"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	keyAutoSync    = "auto_sync"
	keyInterval    = "interval_seconds"
	keyFolderToken = "folder_token"
)

// SettingsRepository stores model.Settings as key/value rows. Missing keys
// fall back to model.DefaultSettings.
type SettingsRepository struct{}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

func (r *SettingsRepository) Load() (model.Settings, error) {
	settings := model.DefaultSettings()

	var rows []model.Setting
	if err := db.DB.Find(&rows).Error; err != nil {
		return settings, fmt.Errorf("failed to load settings: %w", err)
	}

	for _, row := range rows {
		switch row.Key {
		case keyAutoSync:
			if v, err := strconv.ParseBool(row.Value); err == nil {
				settings.AutoSync = v
			}
		case keyInterval:
			if v, err := strconv.Atoi(row.Value); err == nil && v > 0 {
				settings.IntervalSeconds = v
			}
		case keyFolderToken:
			settings.FolderToken = row.Value
		}
	}

	return settings, nil
}

func (r *SettingsRepository) Save(settings model.Settings) error {
	rows := []model.Setting{
		{Key: keyAutoSync, Value: strconv.FormatBool(settings.AutoSync)},
		{Key: keyInterval, Value: strconv.Itoa(settings.IntervalSeconds)},
		{Key: keyFolderToken, Value: settings.FolderToken},
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
