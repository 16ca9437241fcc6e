package llmclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Transport-level error kinds the engine reacts to differently. The
// chat loop keeps running through all of them; only the recovery hint
// changes.
var (
	// ErrQuotaBreach is an HTTP 429: surfaced verbatim, REPL stays usable.
	ErrQuotaBreach = errors.New("llmclient: request quota exceeded")
	// ErrContextWindowOverflow means the request no longer fits the
	// model's window; the engine offers /compact.
	ErrContextWindowOverflow = errors.New("llmclient: input is too long for the model context window")
	// ErrModelOverloaded is a retryable server-side overload.
	ErrModelOverloaded = errors.New("llmclient: model is temporarily overloaded")
	// ErrAuthExpired means the bearer identity is gone; run login.
	ErrAuthExpired = errors.New("llmclient: authentication expired")
)

// The two overflow detections are substring matches against the raw
// response. The wording is pinned by a test fixture so a silent change
// upstream fails loudly here instead of losing the detection.
const (
	overflowServiceCode    = "ValidationException"
	overflowMessageMarker  = "Input is too long."
	monthlyLimitBodyMarker = "MONTHLY_REQUEST_COUNT"
)

// ClassifyResponse maps an HTTP status plus raw body onto one of the
// sentinel error kinds, or nil when the response carries no known marker.
func ClassifyResponse(status int, serviceCode, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrQuotaBreach
	case status == http.StatusBadRequest &&
		serviceCode == overflowServiceCode &&
		strings.Contains(body, overflowMessageMarker):
		return ErrContextWindowOverflow
	case strings.Contains(body, monthlyLimitBodyMarker):
		return ErrContextWindowOverflow
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthExpired
	case status >= http.StatusInternalServerError:
		return ErrModelOverloaded
	}
	return nil
}

// IsRetryable reports whether a fresh attempt at the same request might
// succeed without the user changing anything.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrModelOverloaded)
}

// wrapStatus attaches the sentinel (when one matches) to an underlying
// provider error so callers can errors.Is against the kind while logs
// keep the original detail.
func wrapStatus(status int, serviceCode, body string, cause error) error {
	if kind := ClassifyResponse(status, serviceCode, body); kind != nil {
		return fmt.Errorf("%w: %v", kind, cause)
	}
	return cause
}
