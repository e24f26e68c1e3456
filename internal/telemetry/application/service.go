package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"skytrack-cloud/internal/audit"
	"skytrack-cloud/internal/observability/metrics"
	"skytrack-cloud/internal/storage/objectstore"
	"skytrack-cloud/internal/supervisor"
	telemetry "skytrack-cloud/internal/telemetry/domain"
)

// RawEvent is one inbound snapshot as received from the transport layer,
// before validation. Payload carries the base64 transport encoding;
// PayloadBytes is set instead when the transport delivered raw bytes
// (multipart uploads).
type RawEvent struct {
	DeviceID        string  `json:"deviceId"`
	TimestampMillis int64   `json:"timestampMillis"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Speed           float64 `json:"speed"`
	Payload         string  `json:"payload"`

	PayloadBytes []byte `json:"-"`
}

// ObjectStore is the put/get surface the service needs from the store client.
type ObjectStore interface {
	Put(ctx context.Context, key string, payload []byte) (*objectstore.Receipt, error)
}

// KeySource yields storage keys.
type KeySource interface {
	Next() string
}

// Service runs the ingestion pipeline: validate, assign a key, dispatch to
// the object store under the supervisor's gate. Every accepted event ends
// in either a receipt or a reported terminal error.
type Service struct {
	store      ObjectStore
	keys       KeySource
	gate       *supervisor.Gate
	auditor    audit.Recorder
	maxPayload int64
	logger     *log.Logger
}

// NewService constructs the ingestion service. auditor may be nil.
func NewService(store ObjectStore, keys KeySource, gate *supervisor.Gate, auditor audit.Recorder, maxPayload int64, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if keys == nil {
		return nil, errors.New("ingest: nil key source")
	}
	if gate == nil {
		return nil, errors.New("ingest: nil gate")
	}
	if maxPayload <= 0 {
		return nil, errors.New("ingest: max payload must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:      store,
		keys:       keys,
		gate:       gate,
		auditor:    auditor,
		maxPayload: maxPayload,
		logger:     logger,
	}, nil
}

// Ingest processes one raw event. Validation failures return before any key
// is generated or store call made. The assigned key is fixed for the event;
// the store client retries under that same key.
func (s *Service) Ingest(ctx context.Context, raw RawEvent) (*objectstore.Receipt, error) {
	snap, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	s.gate.RecordAccepted()

	attempt := uploadAttempt{key: s.keys.Next(), outcome: outcomePending}

	if err := s.gate.Acquire(ctx); err != nil {
		if errors.Is(err, supervisor.ErrSaturated) {
			metrics.IncCapacityRejection()
		}
		return nil, err
	}
	defer s.gate.Release()

	start := time.Now()
	receipt, err := s.store.Put(ctx, attempt.key, snap.Payload)
	elapsed := time.Since(start)

	if err != nil {
		// Cancellation surfaces as-is; it is not a store failure.
		if ctx.Err() != nil {
			return nil, err
		}
		attempt.outcome = outcomeFailedTerminal
		var storeErr *objectstore.StoreError
		if errors.As(err, &storeErr) {
			attempt.attempts = storeErr.Attempts
			if storeErr.Transient {
				attempt.outcome = outcomeFailedTransient
			}
		}
		s.gate.RecordFailure()
		metrics.ObserveUpload(metrics.IngestResultError, elapsed, attempt.attempts-1, 0)
		s.recordAudit(ctx, snap, attempt, err)
		return nil, err
	}

	attempt.outcome = outcomeSucceeded
	attempt.attempts = receipt.Attempts
	s.gate.RecordSuccess()
	metrics.ObserveUpload(metrics.IngestResultSuccess, elapsed, receipt.Attempts-1, len(snap.Payload))
	s.recordAudit(ctx, snap, attempt, nil)
	return receipt, nil
}

func (s *Service) decode(raw RawEvent) (telemetry.Snapshot, error) {
	var zero telemetry.Snapshot
	if raw.DeviceID == "" {
		return zero, &telemetry.ValidationError{Field: "deviceId", Reason: "required"}
	}
	if raw.TimestampMillis <= 0 {
		return zero, &telemetry.ValidationError{Field: "timestampMillis", Reason: "required"}
	}

	payload := raw.PayloadBytes
	if payload == nil {
		if raw.Payload == "" {
			return zero, &telemetry.ValidationError{Field: "payload", Reason: "required"}
		}
		decoded, err := base64.StdEncoding.DecodeString(raw.Payload)
		if err != nil {
			return zero, &telemetry.ValidationError{Field: "payload", Reason: "not valid base64"}
		}
		payload = decoded
	}
	if len(payload) == 0 {
		return zero, &telemetry.ValidationError{Field: "payload", Reason: "empty"}
	}
	if int64(len(payload)) > s.maxPayload {
		return zero, &telemetry.ValidationError{
			Field:  "payload",
			Reason: fmt.Sprintf("%d bytes exceeds %d byte limit", len(payload), s.maxPayload),
		}
	}

	snap := telemetry.Snapshot{
		DeviceID: raw.DeviceID,
		TS:       time.UnixMilli(raw.TimestampMillis).UTC(),
		X:        raw.X,
		Y:        raw.Y,
		Speed:    raw.Speed,
		Payload:  payload,
	}
	if err := snap.Validate(); err != nil {
		return zero, err
	}
	return snap, nil
}

func (s *Service) recordAudit(ctx context.Context, snap telemetry.Snapshot, attempt uploadAttempt, uploadErr error) {
	if s.auditor == nil {
		return
	}
	rec := audit.Record{
		ID:            audit.NewID(),
		DeviceID:      snap.DeviceID,
		Key:           attempt.key,
		Outcome:       attempt.outcome,
		Attempts:      attempt.attempts,
		SizeBytes:     int64(len(snap.Payload)),
		PayloadDigest: audit.Digest(snap.Payload),
		EventTS:       snap.TS,
		CreatedAt:     time.Now().UTC(),
	}
	if uploadErr != nil {
		rec.Error = uploadErr.Error()
	}
	if err := s.auditor.Record(ctx, rec); err != nil {
		s.logger.Printf("ingest: audit record error: %v", err)
	}
}

const (
	outcomePending         = "pending"
	outcomeSucceeded       = "succeeded"
	outcomeFailedTransient = "failed-transient"
	outcomeFailedTerminal  = "failed-terminal"
)

// uploadAttempt tracks one event's trip through the pipeline. It is owned
// by the Ingest call that created it and never shared.
type uploadAttempt struct {
	key      string
	attempts int
	outcome  string
}
