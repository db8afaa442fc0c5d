package model

import (
	"time"

	"gorm.io/gorm"
)

// History records the outcome of one sync pass.
type History struct {
	gorm.Model
	PassID      string     `gorm:"not null;index" json:"pass_id"`
	Status      StatusKind `gorm:"not null" json:"status"`
	Source      string     `gorm:"not null" json:"source"`
	Destination string     `gorm:"not null" json:"destination"`
	Files       int        `json:"files"`
	ErrKind     ErrorKind  `json:"err_kind,omitempty"`
	ErrMsg      string     `json:"err_msg,omitempty"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt  time.Time  `gorm:"not null" json:"finished_at"`
}
