package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// UnavailableError means the inference service could not be reached at all.
// It matches domain.ErrServiceUnavailable and the underlying transport error.
type UnavailableError struct {
	Service string
	BaseURL string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s service unavailable at %s: %v", e.Service, e.BaseURL, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{domain.ErrServiceUnavailable, e.Err}
}

// Hint is the operator-facing message returned to the client with the 503.
func (e *UnavailableError) Hint() string {
	return fmt.Sprintf("ensure the %s ML service is running at %s", e.Service, e.BaseURL)
}

// UpstreamError means the service answered but the call failed: a non-2xx
// status, a timeout, or a body that is not JSON.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	// Payload is the upstream error body when it was valid JSON.
	Payload json.RawMessage
	Timeout bool
}

func (e *UpstreamError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Timeout {
		return fmt.Sprintf("%s service timed out: %s", e.Service, msg)
	}
	return fmt.Sprintf("%s service error: status=%d message=%s", e.Service, e.StatusCode, msg)
}

func (e *UpstreamError) Unwrap() error { return domain.ErrUpstream }

func parseUpstreamError(service string, status int, raw []byte) *UpstreamError {
	out := &UpstreamError{Service: service, StatusCode: status}

	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		out.Message = firstLine(string(raw))
		return out
	}
	out.Payload = json.RawMessage(raw)
	for _, key := range []string{"error", "message", "detail"} {
		switch v := env[key].(type) {
		case string:
			if isStackTrace(v) {
				continue
			}
			if s := firstLine(v); s != "" {
				out.Message = s
				return out
			}
		case map[string]any:
			if s, ok := v["message"].(string); ok && strings.TrimSpace(s) != "" {
				out.Message = firstLine(s)
				return out
			}
		}
	}
	return out
}

// PublicPayload is Payload with every top-level string that carries a server
// stack trace removed. It returns nil when nothing else is left.
func (e *UpstreamError) PublicPayload() json.RawMessage {
	if len(e.Payload) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(e.Payload, &body); err != nil {
		return e.Payload
	}
	stripped := false
	for k, v := range body {
		if s, ok := v.(string); ok && isStackTrace(s) {
			delete(body, k)
			stripped = true
		}
	}
	if !stripped {
		return e.Payload
	}
	if len(body) == 0 {
		return nil
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return out
}

// isStackTrace reports whether s looks like a Python traceback or a
// multi-frame stack dump.
func isStackTrace(s string) bool {
	return strings.Contains(s, "Traceback (most recent call last)") ||
		strings.Contains(s, "\n  File \"") ||
		strings.Contains(s, "\n\tat ")
}

// classifyTransportError sorts a failed round trip into the failure taxonomy.
func classifyTransportError(service, baseURL string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request canceled: %w", service, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{
			Service:    service,
			StatusCode: http.StatusGatewayTimeout,
			Message:    "no response within the configured timeout",
			Timeout:    true,
		}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &opErr) && opErr.Op == "dial":
		return &UnavailableError{Service: service, BaseURL: baseURL, Err: err}
	}

	return &UpstreamError{
		Service:    service,
		StatusCode: http.StatusBadGateway,
		Message:    "request to upstream failed",
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
