package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PollMetadata records one completed poll cycle. Rows are append-only; the
// newest row by LastPollTime is the source of truth for staleness checks.
type PollMetadata struct {
	gorm.Model

	LastPollTime     time.Time `gorm:"not null;index"`
	StatusDatMtime   time.Time `gorm:"not null"`
	RecordsProcessed int       `gorm:"not null"`
	ProgramStatus    datatypes.JSON
}
