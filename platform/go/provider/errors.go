// Package provider holds the error taxonomy shared by every external platform adapter.
// Adapters translate transport and HTTP failures into *Error values once, at the boundary,
// so the step executor can decide whether an attempt is worth repeating.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Class tells the executor how to treat a failed call.
type Class string

const (
	// Transient failures are retried within the step budget (5xx, timeouts, rate limits).
	Transient Class = "transient"
	// Permanent failures end the step after one attempt (validation, quota, auth).
	Permanent Class = "permanent"
	// Unknown failures are retried like transient ones but with a smaller cap.
	Unknown Class = "unknown"
)

// Error is the normalized failure returned by provider adapters.
type Error struct {
	Provider   string
	Op         string
	Class      Class
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Provider, e.Op, e.Class, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Provider, e.Op, e.Class, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrAlreadyExists marks a create call rejected because the resource name is taken.
var ErrAlreadyExists = errors.New("resource already exists")

// ErrNotFound marks a lookup for a resource the provider does not know.
var ErrNotFound = errors.New("resource not found")

// NewTransient wraps err as a retryable provider failure.
func NewTransient(providerName, op string, err error) *Error {
	return &Error{Provider: providerName, Op: op, Class: Transient, Err: err}
}

// NewPermanent wraps err as a non-retryable provider failure.
func NewPermanent(providerName, op string, err error) *Error {
	return &Error{Provider: providerName, Op: op, Class: Permanent, Err: err}
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(providerName, op string, status int, header http.Header, message string) *Error {
	e := &Error{
		Provider:   providerName,
		Op:         op,
		StatusCode: status,
		Message:    message,
		Class:      ClassForStatus(status),
	}
	if status == http.StatusConflict {
		e.Err = ErrAlreadyExists
	}
	if status == http.StatusNotFound {
		e.Err = ErrNotFound
	}
	if header != nil {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	return e
}

// FromTransport classifies an error returned before a response was received.
func FromTransport(providerName, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	class := Unknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		class = Transient
	case errors.As(err, &netErr):
		class = Transient
	case errors.Is(err, context.Canceled):
		class = Transient
	}
	return &Error{Provider: providerName, Op: op, Class: class, Err: err}
}

// ClassForStatus maps an HTTP status code to a Class.
func ClassForStatus(status int) Class {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Transient
	case status == http.StatusLocked, status == http.StatusTooEarly:
		return Transient
	case status >= 500:
		return Transient
	case status >= 400:
		return Permanent
	default:
		return Unknown
	}
}

// Classify returns the Class of any error. Errors that did not pass through an adapter
// are Unknown, except deadline errors which are Transient.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	return Unknown
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	return Classify(err) == Permanent
}

// IsAlreadyExists reports whether err is a duplicate-name rejection.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFound reports whether err is a missing-resource response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RetryAfterOf returns the provider-requested delay carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.RetryAfter
	}
	return 0
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
