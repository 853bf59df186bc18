package breakpoint

import "errors"

// Sentinel errors for the breakpoint package.
var (
	// ErrBreakpointAbsent is returned when no breakpoint matches a
	// lookup.
	ErrBreakpointAbsent = errors.New("no such breakpoint")

	// ErrAmbiguousLabel is returned when a label lookup matches more
	// than one breakpoint; lookups by label require uniqueness.
	ErrAmbiguousLabel = errors.New("breakpoint label is ambiguous")

	// ErrModuleScopedName is returned for the (name, module) location
	// specifier, which is a known unimplemented gap.
	ErrModuleScopedName = errors.New("module-scoped name breakpoints are not implemented")

	// ErrUnknownFormat is returned by ParseFormat for an unrecognized
	// format string.
	ErrUnknownFormat = errors.New("unknown monitor format")
)
