package config

import "time"

// Central place for all application-wide timing constants and other defaults.
// Changing a value here immediately affects all components that import
// github.com/fryyyyy/zeekr-hass/internal/config.

const (
	// Polling / transmission intervals
	DefaultPollInterval = 5 * time.Minute // Poll the Zeekr cloud API

	// Operation time-outs (to avoid blocking goroutines)
	APITimeout  = 30 * time.Second // Zeekr cloud API call
	MQTTTimeout = 5 * time.Second  // MQTT publish

	// Command confirmation polling (e.g. charging start/stop)
	ConfirmPollInterval = 10 * time.Second
	ConfirmPollTimeout  = 2 * time.Minute

	// Request-stats persistence
	StatsSaveDelay      = 5 * time.Second
	StatsStorageVersion = 1
)
