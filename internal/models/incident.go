package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	IncidentTypeHost    = "host"
	IncidentTypeService = "service"
)

type Incident struct {
	gorm.Model

	IncidentType          string     `gorm:"not null;index:idx_incident_entity"`
	HostName              string     `gorm:"not null;index:idx_incident_entity"`
	ServiceDescription    string     `gorm:"index:idx_incident_entity"` // empty for host incidents
	State                 string     `gorm:"not null"`
	StartedAt             time.Time  `gorm:"not null;index"`
	EndedAt               *time.Time `gorm:"index"`
	LastCheck             time.Time
	PluginOutput          string
	PostIncidentReviewURL string
	Acknowledged          bool `gorm:"not null;default:false"`

	// Relationships
	Comments       []Comment       `gorm:"foreignKey:IncidentID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	NagiosComments []NagiosComment `gorm:"foreignKey:IncidentID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
}

// IsActive reports whether the incident is still open.
func (i *Incident) IsActive() bool {
	return i.EndedAt == nil
}
