// Package poller drives the status.dat → incident pipeline on a fixed
// interval. One goroutine owns the loop, so cycles never overlap.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"github.com/statusbeacon-dev/statusbeacon/internal/parser"
	"github.com/statusbeacon-dev/statusbeacon/internal/tracker"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Results aggregates one poll cycle's statistics. Errors carries both
// cycle-fatal conditions (unreadable file) and non-fatal warnings (stale
// data, individual record failures).
type Results struct {
	Timestamp         time.Time `json:"timestamp"`
	HostsProcessed    int       `json:"hosts_processed"`
	ServicesProcessed int       `json:"services_processed"`
	IncidentsCreated  int       `json:"incidents_created"`
	IncidentsUpdated  int       `json:"incidents_updated"`
	IncidentsClosed   int       `json:"incidents_closed"`
	CommentsProcessed int       `json:"comments_processed"`
	Errors            []string  `json:"errors"`
}

// Poller owns the parse+track cycle. Construct it once at process start
// and pass it to anything needing health queries; there is no package
// global.
type Poller struct {
	cfg    *config.Config
	db     *gorm.DB
	parser *parser.Parser

	// OnCycleComplete, when set before Start, is invoked after every
	// cycle, including failed ones.
	OnCycleComplete func(Results)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg *config.Config, db *gorm.DB) *Poller {
	return &Poller{
		cfg:    cfg,
		db:     db,
		parser: parser.New(cfg.Nagios.StatusDatPath),
	}
}

// Poll runs one complete cycle: parse, staleness check, host and service
// transitions, comment ingestion, poll metadata, retention cleanup. A
// panic anywhere past parsing is recovered at this boundary and recorded
// as a cycle error; it never reaches the scheduler loop.
func (p *Poller) Poll() (results Results) {
	logrus.Debug("Starting status.dat poll")
	results = Results{Timestamp: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic during poll: %v", r)
			logrus.Error(msg)
			results.Errors = append(results.Errors, msg)
		}
		if p.OnCycleComplete != nil {
			p.OnCycleComplete(results)
		}
	}()

	if err := p.parser.Parse(); err != nil {
		var msg string
		switch {
		case errors.Is(err, fs.ErrNotExist):
			msg = fmt.Sprintf("status.dat file not found: %v", err)
		case errors.Is(err, fs.ErrPermission):
			msg = fmt.Sprintf("permission denied reading status.dat: %v", err)
		default:
			msg = fmt.Sprintf("failed to read status.dat: %v", err)
		}
		logrus.Error(msg)
		results.Errors = append(results.Errors, msg)
		return results
	}

	if p.parser.IsStale(p.cfg.Polling.StalenessThreshold()) {
		age, _ := p.parser.DataAge()
		msg := fmt.Sprintf("status.dat data is stale (%.0f seconds old)", age.Seconds())
		logrus.Warn(msg)
		results.Errors = append(results.Errors, msg)
	}

	tr := tracker.New(p.db)

	hosts := p.parser.Hosts(p.cfg.Nagios.Hostgroups, p.cfg.Nagios.Hosts)
	for _, host := range hosts {
		results.HostsProcessed++

		_, outcome, err := tr.ProcessHost(host)
		if err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("host %s: %v", host.HostName, err))
			continue
		}
		results.tally(outcome)
	}

	services := p.parser.Services(p.cfg.Nagios.Servicegroups, serviceKeys(p.cfg.Nagios.Services))
	for _, service := range services {
		results.ServicesProcessed++

		_, outcome, err := tr.ProcessService(service)
		if err != nil {
			results.Errors = append(results.Errors,
				fmt.Sprintf("service %s/%s: %v", service.HostName, service.ServiceDescription, err))
			continue
		}
		results.tally(outcome)
	}

	if p.cfg.Comments.PullNagiosComments {
		p.ingestComments(tr, &results)
	}

	metadata := models.PollMetadata{
		LastPollTime:     time.Now(),
		StatusDatMtime:   mtimeOrNow(p.parser),
		RecordsProcessed: results.HostsProcessed + results.ServicesProcessed,
	}
	if prog, ok := p.parser.ProgramStatus(); ok {
		if raw, err := json.Marshal(prog); err == nil {
			metadata.ProgramStatus = datatypes.JSON(raw)
		}
	}
	if err := p.db.Create(&metadata).Error; err != nil {
		msg := fmt.Sprintf("failed to record poll metadata: %v", err)
		logrus.Error(msg)
		results.Errors = append(results.Errors, msg)
	}

	if p.cfg.Incidents.RetentionDays > 0 {
		deleted, err := tr.CleanupOldIncidents(p.cfg.Incidents.RetentionDays)
		if err != nil {
			msg := fmt.Sprintf("incident cleanup failed: %v", err)
			logrus.Error(msg)
			results.Errors = append(results.Errors, msg)
		} else if deleted > 0 {
			logrus.Infof("Cleaned up %d old incidents", deleted)
		}
	}

	logrus.WithFields(logrus.Fields{
		"hosts":    results.HostsProcessed,
		"services": results.ServicesProcessed,
		"created":  results.IncidentsCreated,
		"updated":  results.IncidentsUpdated,
		"closed":   results.IncidentsClosed,
		"comments": results.CommentsProcessed,
		"errors":   len(results.Errors),
	}).Info("Poll complete")

	return results
}

// ingestComments links status-file comments to open incidents. Incidents
// were already processed this cycle, so every linkable incident exists by
// now; one snapshot of the open set serves all comments.
func (p *Poller) ingestComments(tr *tracker.Tracker, results *Results) {
	active, err := tr.ActiveIncidents()
	if err != nil {
		results.Errors = append(results.Errors, fmt.Sprintf("failed to load open incidents for comment linking: %v", err))
		return
	}

	for _, rec := range p.parser.Comments() {
		match := tracker.MatchComment(rec, active)

		comment, err := tr.ProcessNagiosComment(rec, match)
		if err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("comment on %s: %v", rec.HostName, err))
			continue
		}
		if comment != nil {
			results.CommentsProcessed++
		}
	}
}

func (r *Results) tally(outcome tracker.Outcome) {
	switch outcome {
	case tracker.OutcomeCreated:
		r.IncidentsCreated++
	case tracker.OutcomeUpdated:
		r.IncidentsUpdated++
	case tracker.OutcomeClosed:
		r.IncidentsClosed++
	}
}

// Start runs an immediate poll, then polls on the configured interval in
// a background goroutine until Stop is called.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		logrus.Warn("Poller is already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	go p.run(ctx)

	logrus.Infof("Poller started with interval of %d seconds", p.cfg.Polling.IntervalSeconds)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	p.Poll()

	ticker := time.NewTicker(p.cfg.Polling.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Stop cancels future cycles and waits for any in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		logrus.Warn("Poller is not running")
		return
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done

	logrus.Info("Poller stopped")
}

// LastPoll returns the newest poll metadata row, or nil when no poll has
// ever completed.
func (p *Poller) LastPoll() (*models.PollMetadata, error) {
	var metadata models.PollMetadata

	if err := p.db.Order("last_poll_time DESC").First(&metadata).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &metadata, nil
}

// IsDataStale reports whether no poll has ever completed, or the most
// recent one is older than the staleness threshold.
func (p *Poller) IsDataStale() bool {
	last, err := p.LastPoll()
	if err != nil || last == nil {
		return true
	}
	return time.Since(last.LastPollTime) > p.cfg.Polling.StalenessThreshold()
}

func serviceKeys(refs []config.ServiceRef) []parser.ServiceKey {
	if len(refs) == 0 {
		return nil
	}
	keys := make([]parser.ServiceKey, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, parser.ServiceKey{
			HostName:           ref.HostName,
			ServiceDescription: ref.ServiceDescription,
		})
	}
	return keys
}

func mtimeOrNow(p *parser.Parser) time.Time {
	if mtime := p.FileMtime(); mtime != nil {
		return *mtime
	}
	return time.Now()
}
