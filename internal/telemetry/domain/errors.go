package telemetry

import "fmt"

// ValidationError reports a malformed or missing snapshot field. It is
// always terminal and never triggers a store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
