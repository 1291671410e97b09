// Package errs defines the coded error taxonomy shared by the relay components.
package errs

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Standard error codes for the application.
const (
	CodeUnknown  = "UNKNOWN"
	CodeConfig   = "CONFIG"
	CodeFetch    = "FETCH"
	CodeNotify   = "NOTIFY"
	CodeDatabase = "DATABASE"
)

// maxPayload bounds how much of a remote response is kept on a FetchError.
const maxPayload = 512

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string {
	return e.base.Error()
}

func (e *ConfigError) Code() string {
	return e.base.Code()
}

func (e *ConfigError) Unwrap() error {
	return e.base.Unwrap()
}

func NewConfigError(message string, cause error) error {
	return &ConfigError{
		base: Error{
			code:    CodeConfig,
			message: message,
			err:     cause,
		},
	}
}

// FetchError reports a failed history fetch. Payload holds the (truncated)
// response body when one was received.
type FetchError struct {
	base    Error
	Payload string
}

func (e *FetchError) Error() string {
	if e.Payload == "" {
		return e.base.Error()
	}

	return fmt.Sprintf("%s (payload: %s)", e.base.Error(), e.Payload)
}

func (e *FetchError) Code() string {
	return e.base.Code()
}

func (e *FetchError) Unwrap() error {
	return e.base.Unwrap()
}

// Reason returns the failure label without cause or payload.
func (e *FetchError) Reason() string {
	return e.base.message
}

func NewFetchError(reason string, cause error, payload []byte) error {
	return &FetchError{
		base: Error{
			code:    CodeFetch,
			message: reason,
			err:     cause,
		},
		Payload: truncate(payload),
	}
}

// NotifyError reports a single failed notification. Status is zero when no
// HTTP response was received.
type NotifyError struct {
	base   Error
	Status int
}

func (e *NotifyError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.base.Error(), e.Status)
	}

	return e.base.Error()
}

func (e *NotifyError) Code() string {
	return e.base.Code()
}

func (e *NotifyError) Unwrap() error {
	return e.base.Unwrap()
}

func NewNotifyError(message string, status int, cause error) error {
	return &NotifyError{
		base: Error{
			code:    CodeNotify,
			message: message,
			err:     cause,
		},
		Status: status,
	}
}

type DatabaseError struct {
	base Error
}

func (e *DatabaseError) Error() string {
	return e.base.Error()
}

func (e *DatabaseError) Code() string {
	return e.base.Code()
}

func (e *DatabaseError) Unwrap() error {
	return e.base.Unwrap()
}

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{
		base: Error{
			code:    CodeDatabase,
			message: message,
			err:     cause,
		},
	}
}

// truncate keeps at most maxPayload bytes, backing off to the start of a
// UTF-8 sequence so the kept part does not end in a split rune.
func truncate(payload []byte) string {
	if len(payload) <= maxPayload {
		return string(payload)
	}

	cut := maxPayload
	for i := 0; i < utf8.UTFMax-1 && cut > 0 && !utf8.RuneStart(payload[cut]); i++ {
		cut--
	}
	return string(payload[:cut]) + "..."
}
