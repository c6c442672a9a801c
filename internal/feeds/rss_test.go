package feeds

import (
	"encoding/xml"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type rssDoc struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Guid        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

func parseRSS(t *testing.T, raw string) rssDoc {
	t.Helper()
	var doc rssDoc
	require.NoError(t, xml.Unmarshal([]byte(raw), &doc))
	return doc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(&models.Incident{}))
	return database
}

func testRSSConfig() config.RSSConfig {
	return config.RSSConfig{
		Title:       "Test Status Page",
		Description: "Test status updates",
		Link:        "https://status.test.com",
		MaxItems:    50,
	}
}

func seedIncidents(t *testing.T, database *gorm.DB) {
	t.Helper()
	now := time.Now()

	incidents := []models.Incident{
		{
			IncidentType: models.IncidentTypeHost,
			HostName:     "webserver01",
			State:        "DOWN",
			StartedAt:    now.Add(-2 * time.Hour),
			LastCheck:    now.Add(-5 * time.Minute),
			PluginOutput: "Host unreachable",
		},
		{
			IncidentType:       models.IncidentTypeService,
			HostName:           "webserver01",
			ServiceDescription: "HTTP",
			State:              "CRITICAL",
			StartedAt:          now.Add(-4 * time.Hour),
			EndedAt:            timePtr(now.Add(-1 * time.Hour)),
			LastCheck:          now.Add(-1 * time.Hour),
			PluginOutput:       "Connection refused",
		},
		{
			IncidentType:       models.IncidentTypeService,
			HostName:           "dbserver01",
			ServiceDescription: "MySQL",
			State:              "WARNING",
			StartedAt:          now.Add(-30 * time.Minute),
			LastCheck:          now.Add(-5 * time.Minute),
			PluginOutput:       "Slow queries detected",
		},
	}
	for i := range incidents {
		require.NoError(t, database.Create(&incidents[i]).Error)
	}
}

func TestGlobalFeed(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	raw, err := g.GlobalFeed(24)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	assert.Equal(t, "Test Status Page", doc.Channel.Title)
	assert.Len(t, doc.Channel.Items, 3)
}

func TestGlobalFeedRespectsHours(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	raw, err := g.GlobalFeed(3)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	assert.Len(t, doc.Channel.Items, 2, "the 4-hour-old incident falls outside the window")
}

func TestHostFeed(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	raw, err := g.HostFeed("webserver01", 24)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	assert.Contains(t, doc.Channel.Title, "webserver01")
	assert.Len(t, doc.Channel.Items, 2)
}

func TestHostFeedNoIncidents(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	_, err := g.HostFeed("nonexistent", 24)
	assert.ErrorIs(t, err, ErrNoIncidents)
}

func TestServiceFeed(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	raw, err := g.ServiceFeed("webserver01", "HTTP", 24)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	assert.Contains(t, doc.Channel.Title, "webserver01/HTTP")
	assert.Len(t, doc.Channel.Items, 1)
}

func TestServiceFeedNoIncidents(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	_, err := g.ServiceFeed("webserver01", "HTTPS", 24)
	assert.ErrorIs(t, err, ErrNoIncidents)
}

func TestFeedEntryFields(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	raw, err := g.GlobalFeed(24)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	require.NotEmpty(t, doc.Channel.Items)
	for _, item := range doc.Channel.Items {
		assert.NotEmpty(t, item.Title)
		assert.NotEmpty(t, item.Link)
		assert.NotEmpty(t, item.Guid)
		assert.NotEmpty(t, item.PubDate)
		assert.NotEmpty(t, item.Description)
	}
}

func TestFeedMarksActiveAndResolved(t *testing.T) {
	database := newTestDB(t)
	seedIncidents(t, database)
	g := NewGenerator(testRSSConfig(), database)

	raw, err := g.GlobalFeed(24)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	var active, resolved int
	for _, item := range doc.Channel.Items {
		switch {
		case strings.Contains(item.Description, "ACTIVE"):
			active++
		case strings.Contains(item.Description, "RESOLVED"):
			resolved++
		}
	}
	assert.GreaterOrEqual(t, active, 1)
	assert.GreaterOrEqual(t, resolved, 1)
}

func TestFeedRespectsMaxItems(t *testing.T) {
	database := newTestDB(t)
	now := time.Now()
	for i := 0; i < 100; i++ {
		incident := models.Incident{
			IncidentType: models.IncidentTypeHost,
			HostName:     fmt.Sprintf("host%03d", i),
			State:        "DOWN",
			StartedAt:    now.Add(-time.Duration(i) * time.Hour),
			LastCheck:    now,
			PluginOutput: fmt.Sprintf("Test incident %d", i),
		}
		require.NoError(t, database.Create(&incident).Error)
	}

	cfg := testRSSConfig()
	cfg.MaxItems = 10
	g := NewGenerator(cfg, database)

	raw, err := g.GlobalFeed(200)
	require.NoError(t, err)

	doc := parseRSS(t, raw)
	assert.Len(t, doc.Channel.Items, 10)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
