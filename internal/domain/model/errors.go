package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("device not found")
	ErrUpstreamUnavailable = errors.New("gateway unavailable")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// ValidationError reports a request value the bridge or the gateway
// client refuses before any command reaches the hardware.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
