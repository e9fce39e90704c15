package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from the Ollama server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	msg := fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

var (
	retryAndRecord = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	recordOnly     = resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	ignore         = resilience.ErrorClassification{}
)

// classifyOllamaError decides retries for embedding calls.
func classifyOllamaError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return ignore
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ignore
	case resilience.IsCircuitOpen(err):
		return retryAndRecord
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if transientStatus(statusErr.StatusCode) {
			return retryAndRecord
		}
		// Unknown model or malformed request: the caller must fix it.
		return ignore
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retryAndRecord
	}
	return recordOnly
}

// classifyGenerationError is classifyOllamaError without retries on timeouts.
// A timed out generate call still counts against the breaker.
func classifyGenerationError(err error) resilience.ErrorClassification {
	class := classifyOllamaError(err)
	if class.Retryable && timedOut(err) {
		return recordOnly
	}
	return class
}

func timedOut(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout || statusErr.StatusCode == http.StatusGatewayTimeout
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// markTemporary tags failures that a later call may not hit.
func markTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
