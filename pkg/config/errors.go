// Package config provides configuration file parsing with access tracking
// and validation.
package config

import (
	"fmt"

	hosterr "coating-host/pkg/errors"
)

// NewConfigError creates a configuration error with optional section and
// option context.
func NewConfigError(section, option, message string) *hosterr.HostError {
	e := hosterr.New(hosterr.ErrConfigValidation, message)
	if section != "" {
		e.SetSection(section)
	}
	if option != "" {
		e.SetOption(option)
	}
	return e
}

// ErrMissingOption returns an error for a required but missing option.
func ErrMissingOption(section, option string) *hosterr.HostError {
	return hosterr.ConfigOptionError(section, option)
}

// ErrMissingSection returns an error for a missing section.
func ErrMissingSection(section string) *hosterr.HostError {
	return hosterr.ConfigSectionError(section)
}

// ErrInvalidValue returns an error for a value that fails to parse.
func ErrInvalidValue(section, option, value, expected string) *hosterr.HostError {
	return hosterr.ConfigValidationError(section, option,
		fmt.Sprintf("invalid value '%s', expected %s", value, expected))
}

// ErrOutOfRange returns an error for a value outside the allowed range.
func ErrOutOfRange(section, option string, value float64, constraint string) *hosterr.HostError {
	return hosterr.ConfigValidationError(section, option,
		fmt.Sprintf("value %v %s", value, constraint))
}

// ErrInvalidChoice returns an error for an invalid choice value.
func ErrInvalidChoice(section, option, value string, choices []string) *hosterr.HostError {
	return hosterr.ConfigValidationError(section, option,
		fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
