// Package competition holds the error taxonomy shared by the phase engine and its data sources.
package competition

import (
	"errors"
	"fmt"
	"time"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeConfigFetch      Code = "CONFIG_FETCH_FAILED"
	CodeConfigValidation Code = "CONFIG_VALIDATION_FAILED"
	CodeClockAnomaly     Code = "CLOCK_ANOMALY"
)

var (
	// ErrNotFound is returned when the API answers 404 for a resource.
	ErrNotFound = errors.New("not found")
	// ErrLeaderboardHidden is returned when scores are requested before they are published.
	ErrLeaderboardHidden = errors.New("leaderboard hidden")
	// ErrUnauthenticated is returned when a call needs a token and none is configured.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidVote is returned for a vote with an unknown submission or an out-of-range score.
	ErrInvalidVote = errors.New("invalid vote")
)

// ConfigFetchError reports a network, HTTP or decoding failure while fetching competition status.
type ConfigFetchError struct {
	Op         string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *ConfigFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConfigFetchError) Unwrap() error {
	return e.Err
}

// Code returns CodeConfigFetch.
func (e *ConfigFetchError) Code() Code {
	return CodeConfigFetch
}

// ConfigValidationError reports a missing or misordered competition boundary.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid competition config: %s: %s", e.Field, e.Reason)
}

// Code returns CodeConfigValidation.
func (e *ConfigValidationError) Code() Code {
	return CodeConfigValidation
}

// ClockAnomalyError describes a wall-clock sample that moved backwards.
type ClockAnomalyError struct {
	Previous time.Time
	Observed time.Time
}

func (e *ClockAnomalyError) Error() string {
	return fmt.Sprintf("clock moved backwards by %s", e.Previous.Sub(e.Observed))
}

// Code returns CodeClockAnomaly.
func (e *ClockAnomalyError) Code() Code {
	return CodeClockAnomaly
}

// CodeOf extracts the machine-readable code from err, or an empty Code.
func CodeOf(err error) Code {
	var coded interface{ Code() Code }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsValidation reports whether err is or wraps a ConfigValidationError.
func IsValidation(err error) bool {
	var ve *ConfigValidationError
	return errors.As(err, &ve)
}

// IsFetch reports whether err is or wraps a ConfigFetchError.
func IsFetch(err error) bool {
	var fe *ConfigFetchError
	return errors.As(err, &fe)
}
