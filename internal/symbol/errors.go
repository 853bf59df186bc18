package symbol

import "errors"

// Sentinel errors for the symbol package.
var (
	// ErrSymbolAbsent is returned by the must-exist lookups when a
	// symbol cannot be found or resolved.
	ErrSymbolAbsent = errors.New("no such symbol")

	// ErrSymbolConflict is returned when adding a named symbol whose
	// name already exists at a different address in the same module.
	ErrSymbolConflict = errors.New("symbol already exists at a different address")

	// ErrGlobalRemove is returned when Remove is called on the global
	// catalog; only derived views support removal.
	ErrGlobalRemove = errors.New("cannot remove symbols from the global catalog")

	// ErrStaleSymbolMap is returned by LoadMap when the persisted map
	// does not belong to the attached process image.
	ErrStaleSymbolMap = errors.New("persisted symbol map is stale for this process")

	// ErrBadItemSize is returned for item sizes other than 1, 2, 4 or 8.
	ErrBadItemSize = errors.New("item size must be 1, 2, 4 or 8")
)
