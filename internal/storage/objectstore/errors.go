package objectstore

import (
	"errors"
	"fmt"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// StoreError wraps a failed store operation. Transient marks failures that
// were retryable; by the time a StoreError reaches the caller the retry
// budget is spent either way, so callers treat every StoreError as terminal.
type StoreError struct {
	Op        string
	Key       string
	Transient bool
	Attempts  int
	Err       error
}

func (e *StoreError) Error() string {
	class := "terminal"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("objectstore: %s %s (%s): %v", e.Op, e.Key, class, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// isTransient classifies a PutObject failure. 5xx, throttling, and request
// timeouts resolve by retrying; other service responses (bad credentials,
// missing bucket, malformed request) do not. Errors that never produced an
// HTTP response are transport failures and count as transient.
func isTransient(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		return code >= 500 || code == 429 || code == 408
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout":
			return true
		}
		return false
	}
	return true
}
