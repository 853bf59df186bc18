// Package watchpoint manages hardware watchpoints over memory ranges.
//
// The manager mirrors the breakpoint manager's registry and dispatch
// shape but intentionally carries no conflict-resolution policy:
// watchpoints are a scarce hardware resource and the engine itself
// rejects an exhausted or overlapping request, so the manager reports
// the engine's answer instead of second-guessing it.
package watchpoint
