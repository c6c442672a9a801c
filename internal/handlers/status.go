package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statusbeacon-dev/statusbeacon/db"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"github.com/statusbeacon-dev/statusbeacon/internal/parser"
	"github.com/statusbeacon-dev/statusbeacon/internal/poller"
	"github.com/statusbeacon-dev/statusbeacon/internal/tracker"
)

type StatusSummary struct {
	TotalHosts        int        `json:"total_hosts"`
	HostsUp           int        `json:"hosts_up"`
	HostsDown         int        `json:"hosts_down"`
	HostsUnreachable  int        `json:"hosts_unreachable"`
	TotalServices     int        `json:"total_services"`
	ServicesOK        int        `json:"services_ok"`
	ServicesWarning   int        `json:"services_warning"`
	ServicesCritical  int        `json:"services_critical"`
	ServicesUnknown   int        `json:"services_unknown"`
	ActiveIncidents   int        `json:"active_incidents"`
	LastPoll          *time.Time `json:"last_poll"`
	DataIsStale       bool       `json:"data_is_stale"`
}

type HostStatusResponse struct {
	HostName     string     `json:"host_name"`
	CurrentState int        `json:"current_state"`
	StateName    string     `json:"state_name"`
	PluginOutput string     `json:"plugin_output"`
	LastCheck    *time.Time `json:"last_check"`
	IsProblem    bool       `json:"is_problem"`
}

type ServiceStatusResponse struct {
	HostName           string     `json:"host_name"`
	ServiceDescription string     `json:"service_description"`
	CurrentState       int        `json:"current_state"`
	StateName          string     `json:"state_name"`
	PluginOutput       string     `json:"plugin_output"`
	LastCheck          *time.Time `json:"last_check"`
	IsProblem          bool       `json:"is_problem"`
}

// parseSnapshot reads the status file fresh for the request. The API view
// of current host/service state always reflects the file, not the store.
func parseSnapshot(cfg *config.Config) (*parser.Parser, error) {
	p := parser.New(cfg.Nagios.StatusDatPath)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return p, nil
}

func GetStatus(cfg *config.Config, p *poller.Poller) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		snapshot, err := parseSnapshot(cfg)

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status data"})
			return
		}

		hosts := snapshot.Hosts(cfg.Nagios.Hostgroups, cfg.Nagios.Hosts)
		services := snapshot.Services(cfg.Nagios.Servicegroups, serviceFilter(cfg))

		summary := StatusSummary{
			TotalHosts:    len(hosts),
			TotalServices: len(services),
			DataIsStale:   p.IsDataStale(),
		}

		for _, host := range hosts {
			switch host.CurrentState {
			case 0:
				summary.HostsUp++
			case 1:
				summary.HostsDown++
			case 2:
				summary.HostsUnreachable++
			}
		}

		for _, service := range services {
			switch service.CurrentState {
			case 0:
				summary.ServicesOK++
			case 1:
				summary.ServicesWarning++
			case 2:
				summary.ServicesCritical++
			default:
				summary.ServicesUnknown++
			}
		}

		active, err := tracker.New(db.DB).ActiveIncidents()

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count active incidents"})
			return
		}

		summary.ActiveIncidents = len(active)

		if last, err := p.LastPoll(); err == nil && last != nil {
			summary.LastPoll = &last.LastPollTime
		}

		ctx.JSON(http.StatusOK, summary)
	}
}

func GetHosts(cfg *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		snapshot, err := parseSnapshot(cfg)

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status data"})
			return
		}

		hosts := snapshot.Hosts(cfg.Nagios.Hostgroups, cfg.Nagios.Hosts)
		response := make([]HostStatusResponse, 0, len(hosts))

		for _, host := range hosts {
			response = append(response, HostStatusResponse{
				HostName:     host.HostName,
				CurrentState: host.CurrentState,
				StateName:    tracker.StateName(models.IncidentTypeHost, host.CurrentState),
				PluginOutput: host.PluginOutput,
				LastCheck:    epochPtr(host.LastCheck),
				IsProblem:    tracker.IsProblemState(host.CurrentState),
			})
		}

		ctx.JSON(http.StatusOK, response)
	}
}

func GetServices(cfg *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		snapshot, err := parseSnapshot(cfg)

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status data"})
			return
		}

		services := snapshot.Services(cfg.Nagios.Servicegroups, serviceFilter(cfg))
		response := make([]ServiceStatusResponse, 0, len(services))

		for _, service := range services {
			response = append(response, ServiceStatusResponse{
				HostName:           service.HostName,
				ServiceDescription: service.ServiceDescription,
				CurrentState:       service.CurrentState,
				StateName:          tracker.StateName(models.IncidentTypeService, service.CurrentState),
				PluginOutput:       service.PluginOutput,
				LastCheck:          epochPtr(service.LastCheck),
				IsProblem:          tracker.IsProblemState(service.CurrentState),
			})
		}

		ctx.JSON(http.StatusOK, response)
	}
}

func serviceFilter(cfg *config.Config) []parser.ServiceKey {
	if len(cfg.Nagios.Services) == 0 {
		return nil
	}

	keys := make([]parser.ServiceKey, 0, len(cfg.Nagios.Services))
	for _, ref := range cfg.Nagios.Services {
		keys = append(keys, parser.ServiceKey{
			HostName:           ref.HostName,
			ServiceDescription: ref.ServiceDescription,
		})
	}
	return keys
}

func epochPtr(epoch int64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(epoch, 0)
	return &t
}
