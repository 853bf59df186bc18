// Package dispatch routes engine-fired breakpoint and watchpoint
// events to their owning managers.
//
// There is exactly one native-level entry point per event kind: the
// Router's HandleBreakpoint and HandleWatchpoint. Each looks up the
// owning entry by engine-assigned ID through the registered manager
// and, for the duration of the callback only, publishes the hit frame
// as the session's "current frame". The publication is cleared in a
// deferred step, so a callback that returns an error or panics cannot
// corrupt the frame context for subsequent hits; the failure itself
// still propagates to whatever supervises the session loop.
package dispatch
