package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/surf-spot-engine/internal/observability"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers          []string
	KafkaObservationTopic string
	KafkaGroupID          string
	HTTPAddr              string
	LogLevel              string
	LogFormat             string
	ShutdownTimeout       time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	SpotsFile  string
	ReadingsDB string

	// Linking.
	SwellRadiusKm      float64
	WindRadiusKm       float64
	PreferDistinctWind bool
	ReadingMaxAge      time.Duration

	// Scoring.
	GustThresholdKts   float64
	GustPenaltyPerKt   float64
	GustPenaltyMax     float64
	GlassyThresholdKts float64
	GlassyBonus        float64

	Tracing observability.TracingConfig
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaObservationTopic: sharedcfg.EnvOrDefault("KAFKA_OBSERVATION_TOPIC", "station-observations"),
		KafkaGroupID:          sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "surf-spot-engine"),
		HTTPAddr:              sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:              sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:       shutdownTimeout,
		BatchSize:             batchSize,
		BatchFlushInterval:    flushInterval,
		SpotsFile:             sharedcfg.EnvOrDefault("SPOTS_FILE", "data/master_surf_spots.json"),
		ReadingsDB:            sharedcfg.EnvOrDefault("READINGS_DB", "data/readings.db"),
	}

	floats := []struct {
		name string
		def  float64
		dst  *float64
	}{
		{"SWELL_RADIUS_KM", 300, &cfg.SwellRadiusKm},
		{"WIND_RADIUS_KM", 50, &cfg.WindRadiusKm},
		{"GUST_THRESHOLD_KTS", 5, &cfg.GustThresholdKts},
		{"GUST_PENALTY_PER_KT", 2, &cfg.GustPenaltyPerKt},
		{"GUST_PENALTY_MAX", 30, &cfg.GustPenaltyMax},
		{"GLASSY_THRESHOLD_KTS", 5, &cfg.GlassyThresholdKts},
		{"GLASSY_BONUS", 5, &cfg.GlassyBonus},
	}
	for _, f := range floats {
		v, err := parseFloat(f.name, f.def)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if cfg.SwellRadiusKm == 0 || cfg.WindRadiusKm == 0 {
		return nil, errors.New("SWELL_RADIUS_KM and WIND_RADIUS_KM must be positive")
	}

	if cfg.PreferDistinctWind, err = parseBool("PREFER_DISTINCT_WIND", false); err != nil {
		return nil, err
	}

	maxAge, err := time.ParseDuration(sharedcfg.EnvOrDefault("READING_MAX_AGE", "3h"))
	if err != nil || maxAge < 0 {
		return nil, errors.New("invalid READING_MAX_AGE")
	}
	cfg.ReadingMaxAge = maxAge

	if cfg.Tracing, err = loadTracing(); err != nil {
		return nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaObservationTopic == "" {
		return nil, errors.New("KAFKA_OBSERVATION_TOPIC is required")
	}
	if cfg.SpotsFile == "" {
		return nil, errors.New("SPOTS_FILE is required")
	}
	if cfg.ReadingsDB == "" {
		return nil, errors.New("READINGS_DB is required")
	}

	return cfg, nil
}

func loadTracing() (observability.TracingConfig, error) {
	enabled, err := parseBool("TRACING_ENABLED", false)
	if err != nil {
		return observability.TracingConfig{}, err
	}
	ratio, err := parseFloat("TRACING_SAMPLE_RATIO", 1)
	if err != nil {
		return observability.TracingConfig{}, err
	}
	if ratio > 1 {
		return observability.TracingConfig{}, errors.New("invalid TRACING_SAMPLE_RATIO")
	}
	exporter := strings.ToLower(sharedcfg.EnvOrDefault("TRACING_EXPORTER", "stdout"))
	switch exporter {
	case "stdout", "otlp", "otlpgrpc":
	default:
		return observability.TracingConfig{}, fmt.Errorf("invalid TRACING_EXPORTER %q", exporter)
	}
	return observability.TracingConfig{
		Enabled:     enabled,
		ServiceName: sharedcfg.EnvOrDefault("TRACING_SERVICE_NAME", "surf-spot-engine"),
		Exporter:    exporter,
		Endpoint:    os.Getenv("TRACING_ENDPOINT"),
		SampleRatio: ratio,
	}, nil
}

// parseFloat reads a non-negative number.
func parseFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}
