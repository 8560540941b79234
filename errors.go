package vrm

import (
	"errors"
	"fmt"
)

var (
	// ErrStatus is returned when the API returns an unexpected status code.
	ErrStatus = errors.New("unexpected status code")
	// ErrNotFound is returned when a lookup by name has no match.
	ErrNotFound = errors.New("not found")
	// ErrEmptyID is returned when a required identifier is empty.
	ErrEmptyID = errors.New("empty id")
)

// TransportError is returned when a request could not be completed:
// connection failures, timeouts, or a non-2xx status without an error
// envelope in the body.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is returned when the envelope status is not "ok".
// Message is the server supplied message, unmodified.
type ServiceError struct {
	Status  string
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return "request failed: " + e.Message
}

// IdentityMismatchError is returned when a mutation answers with an id other
// than the one that was requested.
type IdentityMismatchError struct {
	Resource string
	Want     string
	Got      string
}

// Error implements the error interface.
func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("%s id mismatch: requested %s, server returned %s", e.Resource, e.Want, e.Got)
}

// checkIdentity returns an [*IdentityMismatchError] if got differs from want.
func checkIdentity[ID interface {
	comparable
	fmt.Stringer
}](resource string, want, got ID) error {
	if want == got {
		return nil
	}
	return &IdentityMismatchError{Resource: resource, Want: want.String(), Got: got.String()}
}

// SchemaParseError is returned when a contact detail document does not have
// the expected shape.
type SchemaParseError struct {
	// Key is the offending property, empty for document level problems.
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *SchemaParseError) Error() string {
	if e.Key == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: property %q: %s", e.Key, e.Reason)
}
