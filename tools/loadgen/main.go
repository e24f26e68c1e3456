package main

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type config struct {
	baseURL     string
	devices     int
	concurrency int
	rate        int
	duration    time.Duration
	payloadKB   int
}

func main() {
	cfg := parseConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal(err)
	}

	payload := make([]byte, cfg.payloadKB<<10)
	if _, err := crand.Read(payload); err != nil {
		log.Fatalf("payload generation error: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var sent, ok, rejected, failed atomic.Int64
	requests := make(chan int)

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(cfg.rate))
		defer ticker.Stop()
		defer close(requests)
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				requests <- i
			}
		}
	}()

	client := &http.Client{Timeout: 30 * time.Second}
	var wg sync.WaitGroup
	for worker := 0; worker < cfg.concurrency; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := range requests {
				sent.Add(1)
				status, err := postEvent(ctx, client, cfg, seq, encoded)
				switch {
				case err != nil:
					failed.Add(1)
				case status == http.StatusOK:
					ok.Add(1)
				case status == http.StatusTooManyRequests:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	start := time.Now()
	wg.Wait()
	elapsed := time.Since(start)
	log.Printf("sent=%d ok=%d rejected=%d failed=%d in %s (%.1f req/s)",
		sent.Load(), ok.Load(), rejected.Load(), failed.Load(),
		elapsed.Round(time.Millisecond), float64(sent.Load())/elapsed.Seconds())
}

func postEvent(ctx context.Context, client *http.Client, cfg config, seq int, payload string) (int, error) {
	event := map[string]any{
		"deviceId":        fmt.Sprintf("drone-%d", seq%cfg.devices+1),
		"timestampMillis": time.Now().UnixMilli(),
		"x":               -9795500 + rand.Float64()*1000,
		"y":               5121000 + rand.Float64()*1000,
		"speed":           rand.Float64() * 60,
		"payload":         payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func validateConfig(cfg config) error {
	if cfg.baseURL == "" {
		return errors.New("url is required")
	}
	if cfg.rate <= 0 {
		return errors.New("rate must be positive")
	}
	if cfg.concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if cfg.devices <= 0 {
		return errors.New("devices must be positive")
	}
	if cfg.payloadKB <= 0 {
		return errors.New("payload-kb must be positive")
	}
	if cfg.duration <= 0 {
		return errors.New("duration must be positive")
	}
	return nil
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080/api/v1/telemetry", "ingest endpoint")
	flag.IntVar(&cfg.devices, "devices", 10, "simulated device count")
	flag.IntVar(&cfg.concurrency, "concurrency", 16, "concurrent request workers")
	flag.IntVar(&cfg.rate, "rate", 50, "requests per second")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Second, "run duration")
	flag.IntVar(&cfg.payloadKB, "payload-kb", 12, "payload size in KiB")
	flag.Parse()
	return cfg
}
