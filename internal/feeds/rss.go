// Package feeds renders incident history as RSS for the global feed and
// per-host / per-service feeds.
package feeds

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/feeds"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"gorm.io/gorm"
)

// ErrNoIncidents marks an empty per-entity feed; handlers map it to 404.
var ErrNoIncidents = errors.New("no incidents in window")

type Generator struct {
	cfg config.RSSConfig
	db  *gorm.DB
}

func NewGenerator(cfg config.RSSConfig, db *gorm.DB) *Generator {
	return &Generator{cfg: cfg, db: db}
}

// GlobalFeed returns RSS for all incidents started within the trailing
// window. An empty window still renders a valid feed with no items.
func (g *Generator) GlobalFeed(hours int) (string, error) {
	incidents, err := g.recentIncidents(hours, "", "")
	if err != nil {
		return "", err
	}
	return g.render(g.cfg.Title, g.cfg.Link, incidents)
}

// HostFeed returns RSS for one host's incidents, or ErrNoIncidents when
// the host has none in the window.
func (g *Generator) HostFeed(hostName string, hours int) (string, error) {
	incidents, err := g.recentIncidents(hours, hostName, "")
	if err != nil {
		return "", err
	}
	if len(incidents) == 0 {
		return "", ErrNoIncidents
	}

	title := fmt.Sprintf("%s - %s", g.cfg.Title, hostName)
	link := fmt.Sprintf("%s/host/%s", g.cfg.Link, hostName)
	return g.render(title, link, incidents)
}

// ServiceFeed returns RSS for one service's incidents, or ErrNoIncidents
// when the service has none in the window.
func (g *Generator) ServiceFeed(hostName, serviceDescription string, hours int) (string, error) {
	incidents, err := g.recentIncidents(hours, hostName, serviceDescription)
	if err != nil {
		return "", err
	}
	if len(incidents) == 0 {
		return "", ErrNoIncidents
	}

	title := fmt.Sprintf("%s - %s/%s", g.cfg.Title, hostName, serviceDescription)
	link := fmt.Sprintf("%s/service/%s/%s", g.cfg.Link, hostName, serviceDescription)
	return g.render(title, link, incidents)
}

func (g *Generator) recentIncidents(hours int, hostName, serviceDescription string) ([]models.Incident, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	query := g.db.Where("started_at >= ?", cutoff)
	if hostName != "" {
		query = query.Where("host_name = ?", hostName)
	}
	if serviceDescription != "" {
		query = query.Where("incident_type = ? AND service_description = ?",
			models.IncidentTypeService, serviceDescription)
	}

	limit := g.cfg.MaxItems
	if limit <= 0 {
		limit = 50
	}

	var incidents []models.Incident
	if err := query.Order("started_at DESC").Limit(limit).Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

func (g *Generator) render(title, link string, incidents []models.Incident) (string, error) {
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: g.cfg.Description,
		Created:     time.Now(),
	}

	for _, incident := range incidents {
		feed.Items = append(feed.Items, g.item(incident))
	}

	return feed.ToRss()
}

func (g *Generator) item(incident models.Incident) *feeds.Item {
	entity := incident.HostName
	if incident.IncidentType == models.IncidentTypeService {
		entity = fmt.Sprintf("%s/%s", incident.HostName, incident.ServiceDescription)
	}

	status := "ACTIVE"
	resolution := "ongoing"
	if !incident.IsActive() {
		status = "RESOLVED"
		resolution = incident.EndedAt.Format(time.RFC1123)
	}

	description := fmt.Sprintf("[%s] %s is %s. Started: %s. Resolved: %s. Output: %s",
		status, entity, incident.State,
		incident.StartedAt.Format(time.RFC1123), resolution, incident.PluginOutput)

	itemLink := fmt.Sprintf("%s/incidents/%d", g.cfg.Link, incident.ID)

	return &feeds.Item{
		Title:       fmt.Sprintf("[%s] %s %s", status, entity, incident.State),
		Link:        &feeds.Link{Href: itemLink},
		Id:          fmt.Sprintf("%s#%s", itemLink, status),
		Description: description,
		Created:     incident.StartedAt,
	}
}
