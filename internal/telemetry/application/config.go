package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineConfig tunes the ingestion pipeline. Values come from env vars
// with defaults, optionally overridden by a YAML file named by
// INGEST_CONFIG. Immutable after load.
type PipelineConfig struct {
	MaxPayloadBytes  int64
	GateLimit        int
	GateMaxWait      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	KeyPrefix        string
}

// fileConfig mirrors PipelineConfig for the YAML file; durations are Go
// duration strings ("200ms", "2s").
type fileConfig struct {
	MaxPayloadBytes  int64  `yaml:"max_payload_bytes"`
	GateLimit        int    `yaml:"gate_limit"`
	GateMaxWait      string `yaml:"gate_max_wait"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`
	RetryBaseDelay   string `yaml:"retry_base_delay"`
	RetryMaxDelay    string `yaml:"retry_max_delay"`
	KeyPrefix        string `yaml:"key_prefix"`
}

// LoadPipelineConfig loads tuning from env, then the YAML file if set.
func LoadPipelineConfig() (PipelineConfig, error) {
	cfg := PipelineConfig{
		MaxPayloadBytes:  getenvInt64Default("MAX_PAYLOAD_BYTES", 10<<20),
		GateLimit:        getenvIntDefault("GATE_LIMIT", 64),
		GateMaxWait:      getenvDuration("GATE_MAX_WAIT", 0),
		RetryMaxAttempts: getenvIntDefault("RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelay:   getenvDuration("RETRY_BASE_DELAY", 200*time.Millisecond),
		RetryMaxDelay:    getenvDuration("RETRY_MAX_DELAY", 5*time.Second),
		KeyPrefix:        getenvDefault("KEY_PREFIX", "snapshots"),
	}

	if path := os.Getenv("INGEST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, err
		}
		if err := mergeFileConfig(&cfg, file); err != nil {
			return cfg, err
		}
	}

	if cfg.MaxPayloadBytes <= 0 {
		return cfg, errors.New("ingest config: max payload must be positive")
	}
	if cfg.GateLimit <= 0 {
		return cfg, errors.New("ingest config: gate limit must be positive")
	}
	if cfg.RetryMaxAttempts < 1 {
		return cfg, errors.New("ingest config: retry attempts must be at least 1")
	}
	return cfg, nil
}

func mergeFileConfig(cfg *PipelineConfig, file fileConfig) error {
	if file.MaxPayloadBytes != 0 {
		cfg.MaxPayloadBytes = file.MaxPayloadBytes
	}
	if file.GateLimit != 0 {
		cfg.GateLimit = file.GateLimit
	}
	if file.RetryMaxAttempts != 0 {
		cfg.RetryMaxAttempts = file.RetryMaxAttempts
	}
	if file.KeyPrefix != "" {
		cfg.KeyPrefix = file.KeyPrefix
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{file.GateMaxWait, &cfg.GateMaxWait},
		{file.RetryBaseDelay, &cfg.RetryBaseDelay},
		{file.RetryMaxDelay, &cfg.RetryMaxDelay},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
