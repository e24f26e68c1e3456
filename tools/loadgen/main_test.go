package main

import (
	"testing"
	"time"
)

func defaults() config {
	return config{
		baseURL:     "http://localhost:8080/api/v1/telemetry",
		devices:     10,
		concurrency: 16,
		rate:        50,
		duration:    30 * time.Second,
		payloadKB:   12,
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	if err := validateConfig(defaults()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config)
	}{
		{"empty url", func(c *config) { c.baseURL = "" }},
		{"zero rate", func(c *config) { c.rate = 0 }},
		{"negative rate", func(c *config) { c.rate = -5 }},
		{"zero concurrency", func(c *config) { c.concurrency = 0 }},
		{"zero devices", func(c *config) { c.devices = 0 }},
		{"zero payload", func(c *config) { c.payloadKB = 0 }},
		{"zero duration", func(c *config) { c.duration = 0 }},
	}
	for _, tc := range cases {
		cfg := defaults()
		tc.mutate(&cfg)
		if err := validateConfig(cfg); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}
