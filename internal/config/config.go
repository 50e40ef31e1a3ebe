package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration options for the zeekr-hass daemon.
type Config struct {
	// Zeekr cloud API credentials
	Username      string `json:"username"`
	Password      string `json:"password"`
	APIBaseURL    string `json:"api_base_url"`
	HmacAccessKey string `json:"hmac_access_key"`
	HmacSecretKey string `json:"hmac_secret_key"`

	// MQTT Configuration
	MQTTUrl         string `json:"mqtt_url"`         // MQTT URL (supports both WebSocket and standard MQTT)
	DiscoveryPrefix string `json:"discovery_prefix"` // Home Assistant discovery prefix

	// Application Configuration
	PollInterval time.Duration `json:"poll_interval"` // Vehicle status poll interval
	StatsPath    string        `json:"stats_path"`    // Path of the persisted request-stats document
	Verbose      bool          `json:"verbose"`       // Enable verbose logging
}

// GetDefaultConfig returns a configuration with sensible defaults.
func GetDefaultConfig() *Config {
	return &Config{
		APIBaseURL:      "https://api.eu.zeekrlife.com",
		DiscoveryPrefix: "homeassistant",
		PollInterval:    DefaultPollInterval,
		StatsPath:       "zeekr_ev_stats.json",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	// MQTT validation - support both WebSocket and standard MQTT protocols
	if c.MQTTUrl != "" {
		if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
			!strings.HasPrefix(c.MQTTUrl, "wss://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
			return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
		}
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	return nil
}

// HasMQTT returns true if MQTT is configured.
func (c *Config) HasMQTT() bool {
	return c.MQTTUrl != ""
}
