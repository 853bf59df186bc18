// Package symbol implements the symbol catalog: an identity-stable,
// lazily populated, filterable cache of every resolvable name and
// address in the inspected process.
//
// One global Catalog exists per session and is the single source of
// truth. Derived views (filter results, set algebra, injection
// harvests) reference global entries and never create new identity.
// Regular (named) symbols are cached by their (name, address) identity;
// anonymous symbols carry a valid address but are never cached, so two
// resolutions of the same bare address may yield distinct instances.
//
// Population is per-module and monotonic: enumerating the catalog scans
// each not-yet-populated module exactly once per session, while point
// lookups by exact name or address resolve directly through the engine
// and never force a full scan. ForceRefresh bypasses the populated
// marks and re-scans unconditionally.
package symbol
