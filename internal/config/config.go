package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Client
		Tasks
		Alerts
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Client struct {
		BaseURL           string
		RequestsPerSecond float64
		Burst             int
		PageSize          int
		Timeout           time.Duration
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Alerts struct {
		FailureThreshold int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Provider client defaults
	v.SetDefault("client_base_url", "")
	v.SetDefault("client_requests_per_second", 2.0)
	v.SetDefault("client_burst", 4)
	v.SetDefault("client_page_size", 200)
	v.SetDefault("client_timeout", "30s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Alerting defaults
	v.SetDefault("alert_failure_threshold", 3)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Client: Client{
			BaseURL:           v.GetString("CLIENT_BASE_URL"),
			RequestsPerSecond: v.GetFloat64("CLIENT_REQUESTS_PER_SECOND"),
			Burst:             v.GetInt("CLIENT_BURST"),
			PageSize:          v.GetInt("CLIENT_PAGE_SIZE"),
			Timeout:           v.GetDuration("CLIENT_TIMEOUT"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Alerts: Alerts{
			FailureThreshold: v.GetInt("ALERT_FAILURE_THRESHOLD"),
		},
	}
}
