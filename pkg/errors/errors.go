// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

func (e *RodentError) Error() string {
	msg := fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Metadata != nil {
		if out, ok := e.Metadata["output"]; ok && out != "" {
			msg += "\nCommand output: " + out
		}
	}
	return msg
}

func (e *RodentError) WithMetadata(key, value string) *RodentError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// MarshalJSON stamps a timestamp onto every serialized error.
func (e *RodentError) MarshalJSON() ([]byte, error) {
	type Alias RodentError
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(e),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// New creates a RodentError from a registered code.
func New(code ErrorCode, details string) *RodentError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &RodentError{
			Code:       code,
			Domain:     "UNKNOWN",
			Message:    "unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
		}
	}

	return &RodentError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Is implements errors.Is support: two RodentErrors match by (code, domain).
func (e *RodentError) Is(target error) bool {
	t, ok := target.(*RodentError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Domain == t.Domain
}

// Wrap re-codes err, preserving metadata and chaining the original error so
// errors.Unwrap keeps working.
func Wrap(err error, code ErrorCode) *RodentError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RodentError); ok {
		newErr := New(code, re.Details)
		for k, v := range re.Metadata {
			newErr.WithMetadata(k, v)
		}
		newErr.WithMetadata("wrapped_code", fmt.Sprintf("%d", re.Code))
		newErr.WithMetadata("wrapped_domain", string(re.Domain))
		newErr.WithMetadata("wrapped_message", re.Message)
		newErr.wrapped = re
		return newErr
	}
	out := New(code, err.Error())
	out.wrapped = err
	return out
}

func (e *RodentError) Unwrap() error {
	return e.wrapped
}

// IsRodentError reports whether err is a *RodentError.
func IsRodentError(err error) bool {
	_, ok := err.(*RodentError)
	return ok
}

// NewCommandError builds a RodentError describing a failed subprocess.
func NewCommandError(cmd string, exitCode int, stderr string) *RodentError {
	return New(CommandExecution, "command execution failed").
		WithMetadata("command", cmd).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode)).
		WithMetadata("output", stderr)
}

// GetCode extracts the ErrorCode carried by err, if any.
func GetCode(err error) (ErrorCode, bool) {
	if err == nil {
		return 0, false
	}
	if re, ok := err.(*RodentError); ok {
		return re.Code, true
	}
	var re *RodentError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

// GetErrorWithCode returns the first RodentError in err's chain if it has
// the given code, or nil. RodentErrors further down the chain are not
// examined.
func GetErrorWithCode(err error, code ErrorCode) *RodentError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RodentError); ok && re.Code == code {
		return re
	}
	var re *RodentError
	if errors.As(err, &re) && re.Code == code {
		return re
	}
	return nil
}

// IsTransient reports whether code falls in the 1300-1399 TransientIO range,
// the signal used by callers (inventory stream copy, zfsmodel commit) to
// decide whether a retry is appropriate.
func IsTransient(err error) bool {
	code, ok := GetCode(err)
	if !ok {
		return false
	}
	return code >= 1300 && code < 1400
}
