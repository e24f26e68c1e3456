package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"time"

	"skytrack-cloud/internal/observability/metrics"
	"skytrack-cloud/internal/storage/objectstore"
	"skytrack-cloud/internal/supervisor"
	"skytrack-cloud/internal/telemetry/application"
	telemetry "skytrack-cloud/internal/telemetry/domain"
)

// IngestHandler accepts telemetry snapshots over HTTP and runs them through
// the ingestion service. Events arrive as a JSON body or as form fields,
// with the payload base64-encoded either way; multipart requests may carry
// the payload as a raw file part instead.
type IngestHandler struct {
	service *application.Service
	maxBody int64
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler. maxBody bounds the request
// body read, covering the payload plus encoding overhead.
func NewIngestHandler(service *application.Service, maxBody int64, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("httpapi: nil service")
	}
	if maxBody <= 0 {
		return nil, errors.New("httpapi: max body must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, maxBody: maxBody, logger: logger}, nil
}

type receiptResponse struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	ETag     string `json:"etag,omitempty"`
	Attempts int    `json:"attempts"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// ServeHTTP ingests one snapshot.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.IngestResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	raw, err := h.parseEvent(r)
	if err != nil {
		result = metrics.IngestResultError
		metrics.IncIngestError("bad_request")
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	receipt, err := h.service.Ingest(r.Context(), raw)
	if err != nil {
		result = metrics.IngestResultError
		h.writeIngestError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(receiptResponse{
		Key:      receipt.Key,
		URL:      receipt.URL,
		ETag:     receipt.ETag,
		Attempts: receipt.Attempts,
	})
}

func (h *IngestHandler) parseEvent(r *http.Request) (application.RawEvent, error) {
	var raw application.RawEvent

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch contentType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return raw, errors.New("invalid form body")
		}
		return eventFromForm(r.FormValue, nil)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxBody); err != nil {
			return raw, errors.New("invalid multipart body")
		}
		var filePayload []byte
		if file, _, err := r.FormFile("payload"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return raw, errors.New("read payload part error")
			}
			filePayload = data
		}
		return eventFromForm(r.FormValue, filePayload)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return raw, errors.New("read body error")
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return raw, errors.New("invalid json")
		}
		return raw, nil
	}
}

func eventFromForm(value func(string) string, filePayload []byte) (application.RawEvent, error) {
	raw := application.RawEvent{
		DeviceID:     value("deviceId"),
		Payload:      value("payload"),
		PayloadBytes: filePayload,
	}
	if ts := value("timestampMillis"); ts != "" {
		parsed, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return raw, errors.New("invalid timestampMillis")
		}
		raw.TimestampMillis = parsed
	}
	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"x", &raw.X},
		{"y", &raw.Y},
		{"speed", &raw.Speed},
	} {
		v := value(field.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return raw, errors.New("invalid " + field.name)
		}
		*field.dst = parsed
	}
	return raw, nil
}

func (h *IngestHandler) writeIngestError(w http.ResponseWriter, err error) {
	var validationErr *telemetry.ValidationError
	switch {
	case errors.As(err, &validationErr):
		metrics.IncIngestError("validation")
		writeError(w, http.StatusBadRequest, "validation", validationErr.Error())
	case errors.Is(err, supervisor.ErrSaturated):
		metrics.IncIngestError("capacity")
		writeError(w, http.StatusTooManyRequests, "capacity", "too many in-flight uploads")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.IncIngestError("canceled")
		writeError(w, http.StatusServiceUnavailable, "canceled", "request canceled")
	default:
		var storeErr *objectstore.StoreError
		if errors.As(err, &storeErr) {
			h.logger.Printf("ingest: store error for %s: %v", storeErr.Key, err)
		} else {
			h.logger.Printf("ingest: upload error: %v", err)
		}
		metrics.IncIngestError("store")
		writeError(w, http.StatusBadGateway, "store", "upload failed")
	}
}

func writeError(w http.ResponseWriter, status int, class, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: class, Reason: reason})
}
