// Package errs provides structured error types and helpers for the execution relay.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a relay-specific error category.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeCorrelation indicates an event whose owning transaction cannot be resolved.
	CodeCorrelation Code = "correlation"
	// CodeConflict indicates a concurrent mutation or re-registration conflict.
	CodeConflict Code = "conflict"
	// CodeNotFound indicates a missing subscription or correlation entry.
	CodeNotFound Code = "not_found"
	// CodeTerminal indicates an operation against a flushed or aborted subscription.
	CodeTerminal Code = "terminal_subscription"
	// CodeUnavailable indicates the relay is shutting down or saturated.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the relay stack.
type E struct {
	Venue         string
	Code          Code
	Message       string
	TransactionID int64
	OrderID       int64
	OrderStringID string
	Subscription  int64

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the venue and error code.
func New(venue string, code Code, opts ...Option) *E {
	e := &E{
		Venue:         strings.TrimSpace(venue),
		Code:          code,
		Message:       "",
		TransactionID: 0,
		OrderID:       0,
		OrderStringID: "",
		Subscription:  0,
		cause:         nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithTransaction records the transaction id the failure relates to.
func WithTransaction(id int64) Option {
	return func(e *E) {
		e.TransactionID = id
	}
}

// WithOrderID records the numeric venue order id the failure relates to.
func WithOrderID(id int64) Option {
	return func(e *E) {
		e.OrderID = id
	}
}

// WithOrderStringID records the textual venue order id the failure relates to.
func WithOrderStringID(id string) Option {
	trimmed := strings.TrimSpace(id)
	return func(e *E) {
		e.OrderStringID = trimmed
	}
}

// WithSubscription records the log subscription id the failure relates to.
func WithSubscription(id int64) Option {
	return func(e *E) {
		e.Subscription = id
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	venue := strings.TrimSpace(e.Venue)
	if venue == "" {
		venue = "unknown"
	}
	parts = append(parts, "venue="+venue)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.TransactionID != 0 {
		parts = append(parts, "transaction="+strconv.FormatInt(e.TransactionID, 10))
	}
	if e.Subscription != 0 {
		parts = append(parts, "subscription="+strconv.FormatInt(e.Subscription, 10))
	}
	if e.OrderID != 0 {
		parts = append(parts, "order_id="+strconv.FormatInt(e.OrderID, 10))
	}
	if e.OrderStringID != "" {
		parts = append(parts, "order_string_id="+strconv.Quote(e.OrderStringID))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var e *E
	return errors.As(err, &e) && e.Code == code
}
