// Unified error handling for the coating host
//
// Copyright (C) 2026  Coating Host Project
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Project snapshot errors
	ErrProjectParse ErrorCode = "PROJECT_PARSE"
	ErrProjectShape ErrorCode = "PROJECT_SHAPE"

	// Pipeline stage errors
	ErrConvert  ErrorCode = "CONVERT"
	ErrMasking  ErrorCode = "MASKING"
	ErrSequence ErrorCode = "SEQUENCE"
	ErrEmit     ErrorCode = "EMIT"
	ErrSnippet  ErrorCode = "SNIPPET"

	// Generation outcome errors. GENERATE_EMPTY means there was nothing to
	// do (zero eligible shapes) and is soft; GENERATE_BODY means eligible
	// shapes produced no motion, which must never reach the machine.
	ErrGenerateEmpty  ErrorCode = "GENERATE_EMPTY"
	ErrGenerateBody   ErrorCode = "GENERATE_BODY"
	ErrGenerateFailed ErrorCode = "GENERATE_FAILED"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
	ErrStorage     ErrorCode = "STORAGE"
)

// HostError is the unified error type for the host system
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ShapeID is the shape being processed when the error occurred
	ShapeID string

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	if e.ShapeID != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.ShapeID, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetShape sets the shape context
func (e *HostError) SetShape(id string) *HostError {
	e.ShapeID = id
	return e
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Config errors

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *HostError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError creates an error for a missing or invalid config option
func ConfigOptionError(section, option string) *HostError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError creates an error for a config validation failure
func ConfigValidationError(section, option, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// Project errors

// ProjectParseError creates an error for an unreadable project snapshot
func ProjectParseError(path string, err error) *HostError {
	return Wrap(err, ErrProjectParse, fmt.Sprintf("failed to parse project '%s'", path))
}

// ShapeError creates an error for a shape that failed during processing
func ShapeError(code ErrorCode, shapeID, message string) *HostError {
	return New(code, message).SetShape(shapeID)
}

// Generation errors

// NothingToCoatError reports that no eligible shapes were found. This is a
// soft outcome: callers surface it through progress, not as a failure.
func NothingToCoatError() *HostError {
	return New(ErrGenerateEmpty, "no coatable shapes in project")
}

// EmptyBodyError reports that eligible shapes produced no motion. Emitting
// an empty program to a physical machine is never correct.
func EmptyBodyError() *HostError {
	return New(ErrGenerateBody, "generation produced an empty program body")
}

// GenerationFailedError wraps a per-shape failure that aborted the run
func GenerationFailedError(shapeID string, err error) *HostError {
	return Wrap(err, ErrGenerateFailed, "generation aborted").SetShape(shapeID)
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *HostError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component, reason string) *HostError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// StorageError creates an error for a persistence failure
func StorageError(operation string, err error) *HostError {
	return Wrap(err, ErrStorage, fmt.Sprintf("storage %s failed", operation))
}

// RecoverPanic safely recovers from panic and converts to error
func RecoverPanic() *HostError {
	if r := recover(); r != nil {
		var err error
		switch x := r.(type) {
		case string:
			err = RuntimeError(fmt.Sprintf("panic: %s", x))
		case runtime.Error:
			err = RuntimeError(x.Error())
		case error:
			err = RuntimeError(x.Error())
		default:
			err = RuntimeError(fmt.Sprintf("panic: %v", x))
		}
		return err.(*HostError)
	}
	return nil
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if hostErr, ok := err.(*HostError); ok {
		return hostErr.Code == code
	}
	return false
}

// IsNothingToCoat checks for the soft empty-input outcome
func IsNothingToCoat(err error) bool {
	return Is(err, ErrGenerateEmpty)
}

// IsFatal reports whether the error must abort the run. Every code except
// the soft GENERATE_EMPTY outcome is fatal: partial G-code is never safe
// to execute on hardware.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsNothingToCoat(err)
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation)
}
