package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
// The API server, the survey worker, and the enqueue tool all share it; each
// binary reads the subset it needs.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Raster engine configuration.
	EngineBaseURL       string
	EngineProject       string
	EngineToken         string
	EngineTimeout       time.Duration
	EngineMaxRetries    int
	VegetationCacheSize int
	SurveyTimeout       time.Duration

	// Kafka configuration for the survey worker and the event sink.
	KafkaBrokers      []string
	KafkaRequestTopic string
	KafkaResultTopic  string
	KafkaGroupID      string
	BatchSize         int

	// EventsEnabled publishes API survey results to the result topic.
	EventsEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is merged in first, if
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	engineTimeout, err := parsePositiveDuration("ENGINE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	surveyTimeout, err := parsePositiveDuration("SURVEY_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseBoundedInt("ENGINE_MAX_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}

	batchSize, err := parseBoundedInt("BATCH_SIZE", 10, 1, 1000)
	if err != nil {
		return nil, err
	}

	eventsEnabled := false
	if v := os.Getenv("EVENTS_ENABLED"); v != "" {
		eventsEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		EngineBaseURL:       envOrDefault("ENGINE_BASE_URL", "https://rasterengine.renewgrid.io/v1"),
		EngineProject:       envOrDefault("ENGINE_PROJECT", "sitescout-dev"),
		EngineToken:         os.Getenv("ENGINE_TOKEN"),
		EngineTimeout:       engineTimeout,
		EngineMaxRetries:    maxRetries,
		VegetationCacheSize: parseVegetationCacheSize(),
		SurveyTimeout:       surveyTimeout,

		KafkaBrokers:      parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRequestTopic: envOrDefault("KAFKA_REQUEST_TOPIC", "site-survey-requests"),
		KafkaResultTopic:  envOrDefault("KAFKA_RESULT_TOPIC", "site-survey-results"),
		KafkaGroupID:      envOrDefault("KAFKA_GROUP_ID", "sitescout-worker"),
		BatchSize:         batchSize,

		EventsEnabled: eventsEnabled,
	}

	if cfg.EngineBaseURL == "" {
		return nil, errors.New("ENGINE_BASE_URL is required")
	}
	if cfg.EngineProject == "" {
		return nil, errors.New("ENGINE_PROJECT is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaRequestTopic == "" {
		return nil, errors.New("KAFKA_REQUEST_TOPIC is required")
	}
	if cfg.KafkaResultTopic == "" {
		return nil, errors.New("KAFKA_RESULT_TOPIC is required")
	}

	return cfg, nil
}

// envOrDefault returns the environment value for key, or def when unset.
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseBrokers splits a comma-separated broker list, trimming whitespace and
// dropping empty entries.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseBoundedInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseVegetationCacheSize() int {
	if s := os.Getenv("VEGETATION_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 128
}
