package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"skytrack-cloud/internal/storage/objectstore"
	"skytrack-cloud/internal/supervisor"
	"skytrack-cloud/internal/telemetry/application"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, payload []byte) (*objectstore.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), payload...)
	s.mu.Unlock()
	return &objectstore.Receipt{Key: key, URL: "http://store.local/telemetry/" + key, ETag: `"e"`, Attempts: 1}, nil
}

type seqKeys struct {
	n int
}

func (k *seqKeys) Next() string {
	k.n++
	return fmt.Sprintf("snapshots/2026/08/31/key-%d.bin", k.n)
}

func newTestHandler(t *testing.T, store *memStore, gate *supervisor.Gate) *IngestHandler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	service, err := application.NewService(store, &seqKeys{}, gate, nil, 10<<20, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewIngestHandler(service, 16<<20, logger)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func newGate(t *testing.T, limit int) *supervisor.Gate {
	t.Helper()
	gate, err := supervisor.NewGate(limit, 0)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return gate
}

func postJSON(t *testing.T, handler http.Handler, event map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestEndToEnd(t *testing.T) {
	store := newMemStore()
	handler := newTestHandler(t, store, newGate(t, 4))

	payload := make([]byte, 12<<10)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	rec := postJSON(t, handler, map[string]any{
		"deviceId":        "drone-1",
		"timestampMillis": int64(1700000000000),
		"x":               -9795500.0,
		"y":               5121000.0,
		"speed":           42.5,
		"payload":         base64.StdEncoding.EncodeToString(payload),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Key      string `json:"key"`
		URL      string `json:"url"`
		Attempts int    `json:"attempts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Key == "" {
		t.Fatal("empty key in receipt")
	}
	if resp.URL == "" {
		t.Fatal("empty url in receipt")
	}
	if !bytes.Equal(store.objects[resp.Key], payload) {
		t.Fatal("stored object differs from original payload")
	}
}

func TestIngestValidationStatus(t *testing.T) {
	store := newMemStore()
	handler := newTestHandler(t, store, newGate(t, 4))

	rec := postJSON(t, handler, map[string]any{
		"timestampMillis": int64(1700000000000),
		"payload":         "aGVsbG8=",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "validation" {
		t.Fatalf("error class = %q, want validation", resp.Error)
	}
	if len(store.objects) != 0 {
		t.Fatal("store written for invalid event")
	}
}

func TestIngestInvalidJSON(t *testing.T) {
	handler := newTestHandler(t, newMemStore(), newGate(t, 4))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestFormEncoded(t *testing.T) {
	store := newMemStore()
	handler := newTestHandler(t, store, newGate(t, 4))

	form := url.Values{}
	form.Set("deviceId", "drone-2")
	form.Set("timestampMillis", "1700000000000")
	form.Set("x", "-9795500")
	form.Set("y", "5121000")
	form.Set("speed", "12.25")
	form.Set("payload", base64.StdEncoding.EncodeToString([]byte("frame-bytes")))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(store.objects[resp.Key]) != "frame-bytes" {
		t.Fatal("stored object differs from form payload")
	}
}

func TestIngestCapacityStatus(t *testing.T) {
	gate := newGate(t, 1)
	handler := newTestHandler(t, newMemStore(), gate)

	// Hold the only slot so the request hits a saturated gate.
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer gate.Release()

	rec := postJSON(t, handler, map[string]any{
		"deviceId":        "drone-1",
		"timestampMillis": int64(1700000000000),
		"payload":         "aGVsbG8=",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "capacity" {
		t.Fatalf("error class = %q, want capacity", resp.Error)
	}
}

func TestIngestStoreFailureStatus(t *testing.T) {
	store := newMemStore()
	store.err = &objectstore.StoreError{Op: "put", Key: "k", Transient: true, Err: errors.New("upstream down")}
	handler := newTestHandler(t, store, newGate(t, 4))

	rec := postJSON(t, handler, map[string]any{
		"deviceId":        "drone-1",
		"timestampMillis": int64(1700000000000),
		"payload":         "aGVsbG8=",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestIngestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, newMemStore(), newGate(t, 4))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	gate := newGate(t, 8)
	gate.RecordAccepted()
	gate.RecordSuccess()

	rec := httptest.NewRecorder()
	NewStatsHandler(gate).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap supervisor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Accepted != 1 || snap.Succeeded != 1 || snap.Limit != 8 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
