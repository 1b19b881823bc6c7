package beacon

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed client or storage.
	ErrClosed = errors.New("beacon: client is closed")

	// ErrNotFound is returned by Storage implementations when a key is absent.
	ErrNotFound = errors.New("beacon: key not found")

	// ErrInvalidInput is matched by every validation error returned at enqueue time.
	ErrInvalidInput = errors.New("beacon: invalid input")

	// ErrInvalidConfig is returned by Open when required settings are missing.
	ErrInvalidConfig = errors.New("beacon: invalid config")

	// ErrNotReady is returned by Flush after the collector rejected the credentials.
	ErrNotReady = errors.New("beacon: client disabled by collector")

	// ErrTimeout can be returned by a Transport to signal an explicit timeout.
	ErrTimeout = errors.New("beacon: request timed out")
)

// ValidationError describes why a record was rejected before it reached a queue.
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("beacon: invalid %s: %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("beacon: invalid %s: %s %s", e.Record, e.Field, e.Reason)
}

// Is reports ErrInvalidInput so callers can match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// DeliveryError is handed to the error sink when a batch is rejected or
// the collector answers with an unexpected status.
type DeliveryError struct {
	Queue     string
	RequestID string
	Outcome   Outcome
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("beacon: %s delivery %s (request %s)", e.Queue, e.Outcome.Kind, e.RequestID)
	if e.Outcome.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Outcome.Status)
	}
	if len(e.Outcome.Body) > 0 {
		msg += ": " + truncate(string(e.Outcome.Body), 256)
	}
	if e.Outcome.Err != nil {
		msg += ": " + e.Outcome.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	return e.Outcome.Err
}
