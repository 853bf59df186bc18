package config

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	// ErrWatcherClosed indicates use of a watcher after Close.
	ErrWatcherClosed = errors.New("config: watcher is closed")
)

// ValidationError reports a config field holding an unusable value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// ParseError reports a malformed config file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
