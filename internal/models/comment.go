package models

import (
	"gorm.io/gorm"
)

// Comment is an operator-authored note attached to an incident via the API.
type Comment struct {
	gorm.Model

	IncidentID  uint   `gorm:"not null;index"`
	Author      string `gorm:"not null"`
	CommentText string `gorm:"not null"`

	// Relationships
	Incident Incident `gorm:"foreignKey:IncidentID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
