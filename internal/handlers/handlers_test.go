package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/statusbeacon-dev/statusbeacon/db"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"github.com/statusbeacon-dev/statusbeacon/internal/poller"
	"github.com/statusbeacon-dev/statusbeacon/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.Incident{},
		&models.Comment{},
		&models.NagiosComment{},
		&models.PollMetadata{},
	))

	return gdb
}

func writeStatusFixture(t *testing.T) string {
	t.Helper()

	now := time.Now().Unix()
	content := fmt.Sprintf(`info {
	created=%d
	version=4.4.6
	}

programstatus {
	daemon_mode=1
	enable_notifications=1
	}

hoststatus {
	host_name=webserver01
	hostgroups=public-status
	current_state=0
	plugin_output=PING OK
	last_check=%d
	}

hoststatus {
	host_name=dbserver01
	hostgroups=public-status
	current_state=1
	plugin_output=CRITICAL - Host Unreachable
	last_check=%d
	}

servicestatus {
	host_name=webserver01
	service_description=HTTP
	servicegroups=public-status-services
	current_state=2
	plugin_output=HTTP CRITICAL - connection refused
	last_check=%d
	}
`, now, now, now, now)

	dir := t.TempDir()
	path := filepath.Join(dir, "status.dat")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func setupRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db.DB = newTestDB(t)

	cfg := config.Default()
	cfg.Nagios.StatusDatPath = writeStatusFixture(t)
	cfg.RSS.Link = "https://status.test.com"

	p := poller.New(cfg, db.DB)
	return router.NewRouter(cfg, p), cfg
}

func seedIncident(t *testing.T, incident *models.Incident) *models.Incident {
	t.Helper()

	require.NoError(t, db.DB.Create(incident).Error)
	return incident
}

func openHostIncident(host string) *models.Incident {
	return &models.Incident{
		IncidentType: models.IncidentTypeHost,
		HostName:     host,
		State:        "DOWN",
		StartedAt:    time.Now().Add(-time.Hour),
		PluginOutput: "CRITICAL - Host Unreachable",
	}
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheckHealthy(t *testing.T) {
	r, _ := setupRouter(t)

	require.NoError(t, db.DB.Create(&models.PollMetadata{
		LastPollTime:   time.Now(),
		StatusDatMtime: time.Now(),
	}).Error)

	w := doRequest(r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["database_accessible"])
	assert.NotNil(t, body["last_poll_time"])
}

func TestHealthCheckDegraded(t *testing.T) {
	r, _ := setupRouter(t)

	require.NoError(t, db.DB.Create(&models.PollMetadata{
		LastPollTime:   time.Now(),
		StatusDatMtime: time.Now(),
	}).Error)
	seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, float64(1), body["active_incidents_count"])
}

func TestGetStatusSummary(t *testing.T) {
	r, _ := setupRouter(t)
	seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["total_hosts"])
	assert.Equal(t, float64(1), body["hosts_up"])
	assert.Equal(t, float64(1), body["hosts_down"])
	assert.Equal(t, float64(1), body["total_services"])
	assert.Equal(t, float64(1), body["services_critical"])
	assert.Equal(t, float64(1), body["active_incidents"])
}

func TestGetHosts(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/hosts", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var hosts []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hosts))
	require.Len(t, hosts, 2)

	byName := make(map[string]map[string]interface{})
	for _, h := range hosts {
		byName[h["host_name"].(string)] = h
	}

	assert.Equal(t, "UP", byName["webserver01"]["state_name"])
	assert.Equal(t, false, byName["webserver01"]["is_problem"])
	assert.Equal(t, "DOWN", byName["dbserver01"]["state_name"])
	assert.Equal(t, true, byName["dbserver01"]["is_problem"])
}

func TestGetServices(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/services", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var services []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &services))
	require.Len(t, services, 1)
	assert.Equal(t, "HTTP", services[0]["service_description"])
	assert.Equal(t, "CRITICAL", services[0]["state_name"])
	assert.Equal(t, true, services[0]["is_problem"])
}

func TestGetStatusMissingFile(t *testing.T) {
	r, cfg := setupRouter(t)
	cfg.Nagios.StatusDatPath = "/nonexistent/status.dat"

	w := doRequest(r, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListIncidentsActiveOnly(t *testing.T) {
	r, _ := setupRouter(t)

	seedIncident(t, openHostIncident("dbserver01"))
	resolved := openHostIncident("webserver01")
	ended := time.Now().Add(-30 * time.Minute)
	resolved.EndedAt = &ended
	seedIncident(t, resolved)

	w := doRequest(r, http.MethodGet, "/api/incidents?active_only=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var incidents []models.Incident
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "dbserver01", incidents[0].HostName)
}

func TestListIncidentsHoursWindow(t *testing.T) {
	r, _ := setupRouter(t)

	seedIncident(t, openHostIncident("dbserver01"))

	old := openHostIncident("webserver01")
	old.StartedAt = time.Now().Add(-48 * time.Hour)
	seedIncident(t, old)

	w := doRequest(r, http.MethodGet, "/api/incidents?hours=24", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var incidents []models.Incident
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "dbserver01", incidents[0].HostName)
}

func TestListIncidentsBadHours(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/incidents?hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/incidents?hours=-5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetIncidentWithComments(t *testing.T) {
	r, _ := setupRouter(t)

	incident := seedIncident(t, openHostIncident("dbserver01"))
	require.NoError(t, db.DB.Create(&models.Comment{
		IncidentID:  incident.ID,
		Author:      "admin",
		CommentText: "Investigating",
	}).Error)

	w := doRequest(r, http.MethodGet, fmt.Sprintf("/api/incidents/%d", incident.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body models.Incident
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "dbserver01", body.HostName)
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "admin", body.Comments[0].Author)
}

func TestGetIncidentNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/incidents/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIncidentInvalidID(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/incidents/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddComment(t *testing.T) {
	r, _ := setupRouter(t)

	incident := seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/comments", incident.ID), map[string]string{
		"author":       "oncall",
		"comment_text": "Escalated to network team",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var count int64
	require.NoError(t, db.DB.Model(&models.Comment{}).Where("incident_id = ?", incident.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddCommentValidation(t *testing.T) {
	r, _ := setupRouter(t)

	incident := seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/comments", incident.ID), map[string]string{
		"author": "oncall",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddCommentMissingIncident(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/incidents/9999/comments", map[string]string{
		"author":       "oncall",
		"comment_text": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePostIncidentReview(t *testing.T) {
	r, _ := setupRouter(t)

	incident := seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/pir", incident.ID), map[string]string{
		"post_incident_review_url": "https://wiki.test.com/pir/42",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var stored models.Incident
	require.NoError(t, db.DB.First(&stored, incident.ID).Error)
	assert.Equal(t, "https://wiki.test.com/pir/42", stored.PostIncidentReviewURL)
}

func TestAcknowledgeIncident(t *testing.T) {
	r, _ := setupRouter(t)

	incident := seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/acknowledge", incident.ID), map[string]bool{
		"acknowledged": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var stored models.Incident
	require.NoError(t, db.DB.First(&stored, incident.ID).Error)
	assert.True(t, stored.Acknowledged)

	// false is a valid value, not a missing field
	w = doRequest(r, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/acknowledge", incident.ID), map[string]bool{
		"acknowledged": false,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.DB.First(&stored, incident.ID).Error)
	assert.False(t, stored.Acknowledged)
}

func TestGlobalFeed(t *testing.T) {
	r, _ := setupRouter(t)

	seedIncident(t, openHostIncident("dbserver01"))

	w := doRequest(r, http.MethodGet, "/feed/rss", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, w.Body.String(), "dbserver01")
}

func TestHostFeedNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/feed/host/unknown-host/rss", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServiceFeed(t *testing.T) {
	r, _ := setupRouter(t)

	incident := openHostIncident("webserver01")
	incident.IncidentType = models.IncidentTypeService
	incident.ServiceDescription = "HTTP"
	incident.State = "CRITICAL"
	seedIncident(t, incident)

	w := doRequest(r, http.MethodGet, "/feed/service/webserver01/HTTP/rss", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "webserver01/HTTP"))
}
