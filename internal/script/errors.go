package script

import "errors"

// Script runtime errors.
var (
	// ErrStateClosed indicates use of a Lua state after Close.
	ErrStateClosed = errors.New("script: state is closed")
)
