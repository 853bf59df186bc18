package symbol

import "github.com/dshills/peek/internal/engine"

// ResolvedInfo is the resolver's answer for one address: the
// best-matching named entity known to the engine.
type ResolvedInfo struct {
	// Name is the matched symbol name; empty when the engine matched
	// an unnamed entry.
	Name string

	// FileAddress is the ASLR-independent address.
	FileAddress uint64

	// Module is the base name of the containing image.
	Module string

	// Category is the entry's classification.
	Category engine.Category
}

// Resolve asks the engine for the best-matching named entity at addr.
// It is a pure query of engine state at call time; caching is the
// catalog's job. Entries whose category the catalog does not track, or
// whose load address equals the engine's invalid-address sentinel, are
// treated as unresolved rather than as errors.
func Resolve(eng engine.Engine, addr uint64) (ResolvedInfo, bool) {
	info, ok := eng.ResolveAddress(addr)
	if !ok {
		return ResolvedInfo{}, false
	}
	if !usable(info) {
		return ResolvedInfo{}, false
	}
	return ResolvedInfo{
		Name:        info.Name,
		FileAddress: info.FileAddress,
		Module:      info.Module,
		Category:    info.Category,
	}, true
}

// usable reports whether a raw symbol-table entry is one the catalog
// keeps: a tracked category, a real load address and a real name.
func usable(info engine.SymbolInfo) bool {
	if info.Address == engine.InvalidAddress {
		return false
	}
	if !info.Category.Tracked() {
		return false
	}
	if info.Name == "<redacted>" {
		return false
	}
	return true
}
