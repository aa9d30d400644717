// Package settings is the boundary to the key/value configuration store that
// feeds the tracking pipeline its runtime toggles and queue endpoints.
package settings

import (
	"context"
	"strconv"
	"time"
)

// Setting represents the settings table
type Setting struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"size:2048"`
	UpdatedAt time.Time
}

func (Setting) TableName() string {
	return "settings"
}

// Keys consumed by the tracking pipeline.
const (
	KeyEnabled            = "email_tracking.enabled"
	KeySamplingRate       = "email_tracking.sampling_rate"
	KeySaveBody           = "email_tracking.save_body"
	KeySaveHeaders        = "email_tracking.save_headers"
	KeyPollingEnabled     = "email_tracking.polling_enabled"
	KeyPollingIntervalMs  = "email_tracking.polling_interval_ms"
	KeyMaxMessagesPerPoll = "email_tracking.max_messages_per_poll"
	KeyVisibilityTimeout  = "email_tracking.visibility_timeout_secs"
	KeyQueueURL           = "email_tracking.queue_url"
	KeyDLQURL             = "email_tracking.dlq_url"
	KeyRetentionDays      = "email_tracking.retention_days"
	KeyCompressAfterDays  = "email_tracking.compress_after_days"
)

// TrackingConfig is a typed snapshot of the tracking settings.
type TrackingConfig struct {
	Enabled               bool   `json:"enabled"`
	SamplingRate          int    `json:"sampling_rate"`
	SaveBody              bool   `json:"save_body"`
	SaveHeaders           bool   `json:"save_headers"`
	PollingEnabled        bool   `json:"polling_enabled"`
	PollingIntervalMs     int    `json:"polling_interval_ms"`
	MaxMessagesPerPoll    int    `json:"max_messages_per_poll"`
	VisibilityTimeoutSecs int    `json:"visibility_timeout_secs"`
	QueueURL              string `json:"queue_url"`
	DLQURL                string `json:"dlq_url"`
	RetentionDays         int    `json:"retention_days"`
	CompressAfterDays     int    `json:"compress_after_days"`
}

func (c TrackingConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMs) * time.Millisecond
}

// Provider supplies the current tracking configuration.
type Provider interface {
	Tracking(ctx context.Context) (TrackingConfig, error)
}

func defaultConfig() TrackingConfig {
	return TrackingConfig{
		Enabled:               true,
		SamplingRate:          100,
		SaveBody:              false,
		SaveHeaders:           false,
		PollingEnabled:        true,
		PollingIntervalMs:     5000,
		MaxMessagesPerPoll:    10,
		VisibilityTimeoutSecs: 60,
		RetentionDays:         90,
		CompressAfterDays:     30,
	}
}

// parseConfig maps raw key/values onto a TrackingConfig, applying defaults
// for missing keys and clamping values to the ranges the queue provider
// accepts (messages per poll 1-10, visibility timeout 30-43200s).
func parseConfig(values map[string]string) TrackingConfig {
	cfg := defaultConfig()

	cfg.Enabled = parseBool(values, KeyEnabled, cfg.Enabled)
	cfg.SaveBody = parseBool(values, KeySaveBody, cfg.SaveBody)
	cfg.SaveHeaders = parseBool(values, KeySaveHeaders, cfg.SaveHeaders)
	cfg.PollingEnabled = parseBool(values, KeyPollingEnabled, cfg.PollingEnabled)

	cfg.SamplingRate = clamp(parseInt(values, KeySamplingRate, cfg.SamplingRate), 0, 100)
	cfg.PollingIntervalMs = parseInt(values, KeyPollingIntervalMs, cfg.PollingIntervalMs)
	if cfg.PollingIntervalMs < 1000 {
		cfg.PollingIntervalMs = 1000
	}
	cfg.MaxMessagesPerPoll = clamp(parseInt(values, KeyMaxMessagesPerPoll, cfg.MaxMessagesPerPoll), 1, 10)
	cfg.VisibilityTimeoutSecs = clamp(parseInt(values, KeyVisibilityTimeout, cfg.VisibilityTimeoutSecs), 30, 43200)
	cfg.RetentionDays = parseInt(values, KeyRetentionDays, cfg.RetentionDays)
	cfg.CompressAfterDays = parseInt(values, KeyCompressAfterDays, cfg.CompressAfterDays)

	cfg.QueueURL = values[KeyQueueURL]
	cfg.DLQURL = values[KeyDLQURL]
	return cfg
}

func parseBool(values map[string]string, key string, fallback bool) bool {
	if raw, ok := values[key]; ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}

func parseInt(values map[string]string, key string, fallback int) int {
	if raw, ok := values[key]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
