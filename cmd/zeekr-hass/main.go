package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/app"
	"github.com/fryyyyy/zeekr-hass/internal/config"
	"github.com/fryyyyy/zeekr-hass/internal/coordinator"
	"github.com/fryyyyy/zeekr-hass/internal/mqtt"
	"github.com/fryyyyy/zeekr-hass/internal/stats"
	"github.com/fryyyyy/zeekr-hass/internal/store"
)

// version is injected at build time via ldflags
var version = "dev"

func main() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := parseFlags()
	logger := setupLogger(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logrus.Fields{
		"version": version,
		"api":     cfg.APIBaseURL,
		"poll":    cfg.PollInterval,
	}).Info("Starting zeekr-hass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Cloud client ---------------------------------------------------------------
	client := api.NewClient(cfg, logger)
	if err := client.Login(ctx); err != nil {
		logger.WithError(err).Fatal("Zeekr cloud login failed")
	}
	logger.Info("Authenticated with Zeekr cloud")

	// Request stats --------------------------------------------------------------
	tracker := stats.New(store.New(cfg.StatsPath, config.StatsStorageVersion), logger)
	tracker.Load()

	// Coordinator ----------------------------------------------------------------
	coord := coordinator.New(func(ctx context.Context) ([]coordinator.VehicleAPI, error) {
		vehicles, err := client.VehicleList(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]coordinator.VehicleAPI, 0, len(vehicles))
		for _, v := range vehicles {
			out = append(out, v)
		}
		return out, nil
	}, tracker, logger)

	// MQTT -----------------------------------------------------------------------
	var mqttClient *mqtt.Client
	if cfg.HasMQTT() {
		var err error
		mqttClient, err = mqtt.NewClient(cfg.MQTTUrl, "bridge", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MQTT client")
		}
		defer mqttClient.Disconnect(250)
	}

	app.Run(ctx, cfg, coord, mqttClient, logger)
	logger.Info("zeekr-hass stopped")
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags() *config.Config {
	cfg := config.GetDefaultConfig()

	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.StringVar(&cfg.Username, "username", getEnv("ZEEKR_HASS_USERNAME", cfg.Username), "Zeekr account username")
	flag.StringVar(&cfg.Password, "password", getEnv("ZEEKR_HASS_PASSWORD", cfg.Password), "Zeekr account password")
	flag.StringVar(&cfg.APIBaseURL, "api-url", getEnv("ZEEKR_HASS_API_URL", cfg.APIBaseURL), "Zeekr cloud API base URL")
	flag.StringVar(&cfg.HmacAccessKey, "hmac-access-key", getEnv("ZEEKR_HASS_HMAC_ACCESS_KEY", cfg.HmacAccessKey), "API HMAC access key")
	flag.StringVar(&cfg.HmacSecretKey, "hmac-secret-key", getEnv("ZEEKR_HASS_HMAC_SECRET_KEY", cfg.HmacSecretKey), "API HMAC secret key")
	flag.StringVar(&cfg.MQTTUrl, "mqtt-url", getEnv("ZEEKR_HASS_MQTT_URL", cfg.MQTTUrl), "MQTT URL")
	flag.StringVar(&cfg.DiscoveryPrefix, "discovery-prefix", getEnv("ZEEKR_HASS_DISCOVERY_PREFIX", cfg.DiscoveryPrefix), "HA discovery prefix")
	flag.StringVar(&cfg.StatsPath, "stats-path", getEnv("ZEEKR_HASS_STATS_PATH", cfg.StatsPath), "Path of the persisted request-stats document")
	flag.BoolVar(&cfg.Verbose, "verbose", getEnv("ZEEKR_HASS_VERBOSE", "false") == "true", "Verbose logging")

	pollIntervalStr := flag.String("poll-interval", getEnv("ZEEKR_HASS_POLL_INTERVAL", ""), "Vehicle poll interval (e.g. 5m)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("zeekr-hass %s\n", version)
		os.Exit(0)
	}

	if *pollIntervalStr != "" {
		if d, err := time.ParseDuration(*pollIntervalStr); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
