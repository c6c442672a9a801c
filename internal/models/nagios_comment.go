package models

import (
	"time"

	"gorm.io/gorm"
)

// NagiosComment is an annotation ingested from the Nagios status file.
// IncidentID is set once at ingestion time when an open incident for the
// same entity exists, and is never retargeted afterwards.
type NagiosComment struct {
	gorm.Model

	IncidentID         *uint `gorm:"index"`
	HostName           string `gorm:"not null"`
	ServiceDescription string
	Author             string
	CommentData        string
	EntryTime          time.Time
}
