package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is; an empty result is never one of these.
var (
	// ErrSourceUnavailable: the primary store connection or query failed
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrExternalFetchFailed: network error, non-2xx response or timeout on the bulk source
	ErrExternalFetchFailed = errors.New("external fetch failed")
	// ErrMalformedExternalPayload: required columns missing or unreadable payload
	ErrMalformedExternalPayload = errors.New("malformed external payload")
	// ErrInvalidMetric: unknown world-map metric requested by the caller
	ErrInvalidMetric = errors.New("invalid metric")
)

// SourceError carries the operation context of a data-source failure
type SourceError struct {
	Kind    error
	Op      string
	Country string
	Err     error
}

// NewSourceError wraps err with its kind and operation context
func NewSourceError(kind error, op, country string, err error) *SourceError {
	return &SourceError{Kind: kind, Op: op, Country: country, Err: err}
}

func (e *SourceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Country != "" {
		fmt.Fprintf(&b, " [%s]", e.Country)
	}
	// a cause that already names its kind is not prefixed twice
	if e.Err == nil || !errors.Is(e.Err, e.Kind) {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As
func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MalformedPayloadError lists what was wrong with an external payload
type MalformedPayloadError struct {
	Missing []string // required columns absent from the header
	Invalid []string // anything else that made the payload unreadable
}

func (e *MalformedPayloadError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return ErrMalformedExternalPayload.Error()
	}
	return fmt.Sprintf("%v (%s)", ErrMalformedExternalPayload, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrMalformedExternalPayload) match
func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedExternalPayload
}

// InvalidMetric builds the caller-input error for an unknown metric name
func InvalidMetric(metric string) error {
	return fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
}
