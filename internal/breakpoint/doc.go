// Package breakpoint manages the session's logical breakpoints, each
// backed by a native engine breakpoint keyed by its engine-assigned ID.
//
// The manager resolves a location specifier to a native breakpoint,
// enforces the single-enabled-breakpoint-per-location policy (removing
// or prompting about a conflicting breakpoint at the same location,
// controlled by the Override option), protects guarded breakpoints
// from bulk removal, and synthesizes "monitor" callbacks that log
// formatted register, expression and return-value data on every hit.
package breakpoint
