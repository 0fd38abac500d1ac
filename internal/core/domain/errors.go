package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound    = errors.New("table not found")
	ErrToolNotFound     = errors.New("tool not found")
	ErrUnparseableAgent = errors.New("agent output could not be parsed")
	ErrModelTimeout     = errors.New("model call timed out")
)

// QueryError carries the store's message verbatim so the model can self-correct.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string { return e.Message }

// StoreError wraps a failure of the data store itself.
// Connectivity failures are fatal for a run; anything else is shown to the model.
type StoreError struct {
	Op           string
	Err          error
	Connectivity bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is a store failure the model cannot fix.
func IsConnectivity(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Connectivity
}

// ToolError is a tool-level failure. It is always recoverable and ends up as
// observation text.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// ModelError is reported by LLM providers. Retryable covers rate limits,
// server errors and network failures.
type ModelError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s model error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s model error: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// IsRetryableModelError reports whether err is a transient model failure
func IsRetryableModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me) && me.Retryable
}

// ConfigError is returned at construction time for invalid settings.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
