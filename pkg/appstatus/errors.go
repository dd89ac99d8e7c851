package appstatus

import (
	"errors"
	"fmt"
)

// Sentinel errors for status provider operations.
var (
	// ErrAppNotFound indicates the external system has no record of the
	// application (e.g. HTTP 404 or missing custom resource).
	ErrAppNotFound = errors.New("application not found")
)

// ParseError indicates an external response was structurally valid transport
// (e.g. HTTP 200 with a JSON body) but semantically malformed: not an object,
// missing required fields, or carrying values of an unexpected shape.
type ParseError struct {
	// Provider is the variant that produced the error (e.g. "yarn").
	Provider string

	// Reason describes what was wrong with the response.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: cannot parse application report: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: cannot parse application report: %s", e.Provider, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsAppNotFound returns true if the error indicates the application was not
// found on the external system.
func IsAppNotFound(err error) bool {
	return errors.Is(err, ErrAppNotFound)
}

// IsParseError returns true if the error indicates a malformed external
// response.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
