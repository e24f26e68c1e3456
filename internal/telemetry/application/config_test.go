package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPipelineConfigDefaults(t *testing.T) {
	t.Setenv("INGEST_CONFIG", "")
	t.Setenv("MAX_PAYLOAD_BYTES", "")
	t.Setenv("GATE_LIMIT", "")

	cfg, err := LoadPipelineConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPayloadBytes != 10<<20 {
		t.Fatalf("max payload = %d, want %d", cfg.MaxPayloadBytes, 10<<20)
	}
	if cfg.GateLimit != 64 {
		t.Fatalf("gate limit = %d, want 64", cfg.GateLimit)
	}
	if cfg.RetryMaxAttempts != 5 {
		t.Fatalf("retry attempts = %d, want 5", cfg.RetryMaxAttempts)
	}
	if cfg.KeyPrefix != "snapshots" {
		t.Fatalf("key prefix = %q", cfg.KeyPrefix)
	}
}

func TestLoadPipelineConfigEnvOverride(t *testing.T) {
	t.Setenv("INGEST_CONFIG", "")
	t.Setenv("GATE_LIMIT", "16")
	t.Setenv("GATE_MAX_WAIT", "250ms")

	cfg, err := LoadPipelineConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GateLimit != 16 {
		t.Fatalf("gate limit = %d, want 16", cfg.GateLimit)
	}
	if cfg.GateMaxWait != 250*time.Millisecond {
		t.Fatalf("gate max wait = %s", cfg.GateMaxWait)
	}
}

func TestLoadPipelineConfigYAMLOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	data := []byte(`
gate_limit: 8
retry_base_delay: 50ms
key_prefix: drones
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("INGEST_CONFIG", path)
	t.Setenv("GATE_LIMIT", "32")

	cfg, err := LoadPipelineConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GateLimit != 8 {
		t.Fatalf("gate limit = %d, want 8 from file", cfg.GateLimit)
	}
	if cfg.RetryBaseDelay != 50*time.Millisecond {
		t.Fatalf("retry base delay = %s", cfg.RetryBaseDelay)
	}
	if cfg.KeyPrefix != "drones" {
		t.Fatalf("key prefix = %q", cfg.KeyPrefix)
	}
	// Untouched fields keep env/defaults.
	if cfg.RetryMaxAttempts != 5 {
		t.Fatalf("retry attempts = %d, want 5", cfg.RetryMaxAttempts)
	}
}

func TestLoadPipelineConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	if err := os.WriteFile(path, []byte("gate_limit: -1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INGEST_CONFIG", path)

	if _, err := LoadPipelineConfig(); err == nil {
		t.Fatal("expected error for negative gate limit")
	}
}
