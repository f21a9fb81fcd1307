package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRetrieval       = errors.New("retrieval error")
	ErrConfiguration   = errors.New("configuration error")
	ErrMalformedRecord = errors.New("malformed record")
)

// RetrievalError reports that works for one identifier could not be fetched.
// It never aborts a run; the orchestrator moves on to the next roster entry.
type RetrievalError struct {
	Identifier string
	Page       int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%v: %s (page %d): %v", ErrRetrieval, e.Identifier, e.Page, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrRetrieval, e.Identifier, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// ConfigurationError is fatal: the run aborts before any output is written.
type ConfigurationError struct {
	Source string
	Msg    string
	Err    error
}

// Configurationf builds a ConfigurationError for source with a formatted message.
func Configurationf(source, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Source: source, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	msg := e.Msg
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrConfiguration, msg, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrConfiguration, msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// MalformedRecordError describes a single retrieved record that was dropped.
type MalformedRecordError struct {
	Identifier string
	WorkID     string
	Field      string
}

func (e *MalformedRecordError) Error() string {
	id := e.WorkID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("%v: %s record %s: missing %s", ErrMalformedRecord, e.Identifier, id, e.Field)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }
