// Package tracker turns host and service state observations into durable
// incident records: one row per continuous problem period per entity.
package tracker

import (
	"errors"
	"time"

	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"github.com/statusbeacon-dev/statusbeacon/internal/parser"
	"gorm.io/gorm"
)

// Outcome classifies what a Process call did to the entity's incident.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeClosed:
		return "closed"
	default:
		return "none"
	}
}

var hostStateNames = map[int]string{
	0: "UP",
	1: "DOWN",
	2: "UNREACHABLE",
}

var serviceStateNames = map[int]string{
	0: "OK",
	1: "WARNING",
	2: "CRITICAL",
	3: "UNKNOWN",
}

// StateName maps a numeric state to its textual name for the incident
// type. Unknown codes map to "UNKNOWN" rather than failing.
func StateName(incidentType string, state int) string {
	var name string
	var ok bool
	if incidentType == models.IncidentTypeHost {
		name, ok = hostStateNames[state]
	} else {
		name, ok = serviceStateNames[state]
	}
	if !ok {
		return "UNKNOWN"
	}
	return name
}

// IsProblemState reports whether a state code is anything other than the
// nominal UP/OK code.
func IsProblemState(state int) bool {
	return state != 0
}

type Tracker struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// ProcessHost applies one host observation. See process for the rules.
func (t *Tracker) ProcessHost(rec parser.HostStatus) (*models.Incident, Outcome, error) {
	return t.process(models.IncidentTypeHost, rec.HostName, "", rec.CurrentState, rec.PluginOutput, rec.LastCheck)
}

// ProcessService applies one service observation.
func (t *Tracker) ProcessService(rec parser.ServiceStatus) (*models.Incident, Outcome, error) {
	return t.process(models.IncidentTypeService, rec.HostName, rec.ServiceDescription, rec.CurrentState, rec.PluginOutput, rec.LastCheck)
}

// process maintains the at-most-one-open-incident-per-entity invariant:
//   - problem state, nothing open:   create a new incident
//   - problem state, incident open:  refresh state/output/last check in place
//   - ok state, incident open:       close it (EndedAt set, never reopened)
//   - ok state, nothing open:        no-op
//
// Records without a host name are skipped, never an error.
func (t *Tracker) process(incidentType, hostName, serviceDescription string, state int, output string, lastCheck int64) (*models.Incident, Outcome, error) {
	if hostName == "" {
		return nil, OutcomeNone, nil
	}

	open, err := t.FindOpenIncident(incidentType, hostName, serviceDescription)
	if err != nil {
		return nil, OutcomeNone, err
	}

	now := time.Now()
	checkedAt := unixOr(lastCheck, now)

	if IsProblemState(state) {
		if open == nil {
			incident := &models.Incident{
				IncidentType:       incidentType,
				HostName:           hostName,
				ServiceDescription: serviceDescription,
				State:              StateName(incidentType, state),
				StartedAt:          now,
				LastCheck:          checkedAt,
				PluginOutput:       output,
			}
			if err := t.db.Create(incident).Error; err != nil {
				return nil, OutcomeNone, err
			}
			return incident, OutcomeCreated, nil
		}

		// Persist even when only the plugin output changed.
		open.State = StateName(incidentType, state)
		open.PluginOutput = output
		open.LastCheck = checkedAt
		if err := t.db.Save(open).Error; err != nil {
			return nil, OutcomeNone, err
		}
		return open, OutcomeUpdated, nil
	}

	if open == nil {
		return nil, OutcomeNone, nil
	}

	open.EndedAt = &now
	open.PluginOutput = output
	open.LastCheck = checkedAt
	if err := t.db.Save(open).Error; err != nil {
		return nil, OutcomeNone, err
	}
	return open, OutcomeClosed, nil
}

// FindOpenIncident returns the unique open incident for an entity, or nil
// when none exists.
func (t *Tracker) FindOpenIncident(incidentType, hostName, serviceDescription string) (*models.Incident, error) {
	var incident models.Incident

	query := t.db.Where("incident_type = ? AND host_name = ? AND ended_at IS NULL", incidentType, hostName)
	if incidentType == models.IncidentTypeService {
		query = query.Where("service_description = ?", serviceDescription)
	}

	if err := query.Order("id").First(&incident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &incident, nil
}

// ProcessNagiosComment persists a comment ingested from the status file.
// When incident is nil, the open incident for the comment's entity is
// discovered and linked at creation time. Records without a host name are
// skipped.
func (t *Tracker) ProcessNagiosComment(rec parser.CommentRecord, incident *models.Incident) (*models.NagiosComment, error) {
	if rec.HostName == "" {
		return nil, nil
	}

	if incident == nil {
		incidentType := models.IncidentTypeHost
		if rec.ServiceDescription != "" {
			incidentType = models.IncidentTypeService
		}
		var err error
		incident, err = t.FindOpenIncident(incidentType, rec.HostName, rec.ServiceDescription)
		if err != nil {
			return nil, err
		}
	}

	comment := &models.NagiosComment{
		HostName:           rec.HostName,
		ServiceDescription: rec.ServiceDescription,
		Author:             rec.Author,
		CommentData:        rec.CommentData,
		EntryTime:          unixOr(rec.EntryTime, time.Now()),
	}
	if incident != nil {
		comment.IncidentID = &incident.ID
	}

	if err := t.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// MatchComment finds the open incident a status-file comment belongs to,
// by entity identity, among the supplied candidates. Pure function; the
// caller decides where the candidates come from.
func MatchComment(rec parser.CommentRecord, candidates []models.Incident) *models.Incident {
	for i := range candidates {
		incident := &candidates[i]
		if !incident.IsActive() || incident.HostName != rec.HostName {
			continue
		}
		if rec.ServiceDescription != "" {
			if incident.IncidentType == models.IncidentTypeService && incident.ServiceDescription == rec.ServiceDescription {
				return incident
			}
			continue
		}
		if incident.IncidentType == models.IncidentTypeHost {
			return incident
		}
	}
	return nil
}

// LinkCommentToIncident sets the comment's incident back-reference.
// Idempotent; entity/time-window validation is the caller's concern.
func (t *Tracker) LinkCommentToIncident(comment *models.NagiosComment, incident *models.Incident) error {
	if comment.IncidentID != nil && *comment.IncidentID == incident.ID {
		return nil
	}
	comment.IncidentID = &incident.ID
	return t.db.Model(comment).Update("incident_id", incident.ID).Error
}

// ActiveIncidents returns all open incidents in id order.
func (t *Tracker) ActiveIncidents() ([]models.Incident, error) {
	var incidents []models.Incident
	if err := t.db.Where("ended_at IS NULL").Order("id").Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

// RecentIncidents returns incidents started within the trailing window,
// open or closed, newest first.
func (t *Tracker) RecentIncidents(hours int) ([]models.Incident, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	var incidents []models.Incident
	if err := t.db.Where("started_at >= ?", cutoff).Order("started_at DESC").Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

// CleanupOldIncidents permanently deletes closed incidents whose EndedAt
// is older than the retention window. Open incidents are never deleted.
// This is the only deletion path for incidents.
func (t *Tracker) CleanupOldIncidents(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	result := t.db.Unscoped().
		Where("ended_at IS NOT NULL AND ended_at < ?", cutoff).
		Delete(&models.Incident{})
	return result.RowsAffected, result.Error
}

func unixOr(epoch int64, fallback time.Time) time.Time {
	if epoch <= 0 {
		return fallback
	}
	return time.Unix(epoch, 0)
}
