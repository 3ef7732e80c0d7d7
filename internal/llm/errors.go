package llm

import (
	"errors"
	"fmt"

	"github.com/roach88/intellitodo/internal/config"
)

// ConfigError reports missing credentials. It is the config package's
// MissingError so callers can match either name.
type ConfigError = config.MissingError

// RemoteError reports a failed exchange with the completion endpoint.
//
// Status is the HTTP status for a non-2xx answer and 0 when the request
// never got one; Err is set in the latter case.
type RemoteError struct {
	Status int
	Body   any // decoded JSON when possible, else the raw text
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote parser: request failed: %v", e.Err)
	}
	return fmt.Sprintf("remote parser: status %d: %v", e.Status, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// DecodeError reports an answer that is not the expected task JSON.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote parser: %s: %v", e.Reason, e.Err)
	}
	return "remote parser: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRemote returns true if err is or wraps a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsDecode returns true if err is or wraps a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
