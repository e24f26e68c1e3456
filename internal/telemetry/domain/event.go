package telemetry

import "time"

// Snapshot is one device status report: position, speed, and the
// captured binary payload (typically a camera frame).
type Snapshot struct {
	DeviceID string
	TS       time.Time
	X        float64
	Y        float64
	Speed    float64
	Payload  []byte
}

// Validate checks the required snapshot fields. Payload size limits are
// enforced upstream where the configured maximum is known.
func (s Snapshot) Validate() error {
	if s.DeviceID == "" {
		return &ValidationError{Field: "deviceId", Reason: "required"}
	}
	if s.TS.IsZero() {
		return &ValidationError{Field: "timestampMillis", Reason: "required"}
	}
	if len(s.Payload) == 0 {
		return &ValidationError{Field: "payload", Reason: "required"}
	}
	return nil
}
