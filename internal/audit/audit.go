package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is one terminal upload outcome: a stored receipt or a failure.
type Record struct {
	ID            string
	DeviceID      string
	Key           string
	Outcome       string
	Attempts      int
	SizeBytes     int64
	PayloadDigest string
	Error         string
	EventTS       time.Time
	CreatedAt     time.Time
}

// Recorder writes upload records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// NewID generates a random record id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "upload-" + hex.EncodeToString(buf)
}

// Digest computes a SHA256 hex digest of a payload.
func Digest(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
