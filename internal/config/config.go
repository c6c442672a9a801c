package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServiceRef names one monitored service as (host, service description).
type ServiceRef struct {
	HostName           string `mapstructure:"host_name"`
	ServiceDescription string `mapstructure:"service_description"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type NagiosConfig struct {
	StatusDatPath string       `mapstructure:"status_dat_path"`
	Hostgroups    []string     `mapstructure:"hostgroups"`
	Hosts         []string     `mapstructure:"hosts"`
	Servicegroups []string     `mapstructure:"servicegroups"`
	Services      []ServiceRef `mapstructure:"services"`
}

type PollingConfig struct {
	IntervalSeconds           int `mapstructure:"interval_seconds"`
	StalenessThresholdSeconds int `mapstructure:"staleness_threshold_seconds"`
}

func (c PollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c PollingConfig) StalenessThreshold() time.Duration {
	return time.Duration(c.StalenessThresholdSeconds) * time.Second
}

type IncidentsConfig struct {
	// RetentionDays is the age after which closed incidents are purged.
	// Zero disables cleanup entirely.
	RetentionDays int `mapstructure:"retention_days"`
}

type CommentsConfig struct {
	PullNagiosComments bool `mapstructure:"pull_nagios_comments"`
}

type RSSConfig struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Link        string `mapstructure:"link"`
	MaxItems    int    `mapstructure:"max_items"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Nagios    NagiosConfig    `mapstructure:"nagios"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Incidents IncidentsConfig `mapstructure:"incidents"`
	Comments  CommentsConfig  `mapstructure:"comments"`
	RSS       RSSConfig       `mapstructure:"rss"`
	Log       LogConfig       `mapstructure:"log"`
}

// Default returns configuration with sensible defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Nagios.StatusDatPath = "/usr/local/nagios/var/status.dat"
	cfg.Polling.IntervalSeconds = 60
	cfg.Polling.StalenessThresholdSeconds = 300
	cfg.Incidents.RetentionDays = 90
	cfg.Comments.PullNagiosComments = true
	cfg.RSS.Title = "Status Page"
	cfg.RSS.Description = "Incident history for monitored hosts and services"
	cfg.RSS.Link = "http://localhost:8080"
	cfg.RSS.MaxItems = 50
	cfg.Log.Level = "info"
	return cfg
}

// Load reads config.yaml from the working directory or /etc/statusbeacon,
// applies STATUSBEACON_* environment overrides, and unmarshals on top of
// the defaults. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/statusbeacon")

	viper.SetEnvPrefix("STATUSBEACON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", cfg.Server.Port)
	viper.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)
	viper.SetDefault("database.dsn", cfg.Database.DSN)
	viper.SetDefault("nagios.status_dat_path", cfg.Nagios.StatusDatPath)
	viper.SetDefault("polling.interval_seconds", cfg.Polling.IntervalSeconds)
	viper.SetDefault("polling.staleness_threshold_seconds", cfg.Polling.StalenessThresholdSeconds)
	viper.SetDefault("incidents.retention_days", cfg.Incidents.RetentionDays)
	viper.SetDefault("comments.pull_nagios_comments", cfg.Comments.PullNagiosComments)
	viper.SetDefault("rss.title", cfg.RSS.Title)
	viper.SetDefault("rss.description", cfg.RSS.Description)
	viper.SetDefault("rss.link", cfg.RSS.Link)
	viper.SetDefault("rss.max_items", cfg.RSS.MaxItems)
	viper.SetDefault("log.level", cfg.Log.Level)
	viper.SetDefault("log.file", cfg.Log.File)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
