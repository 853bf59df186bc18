package dispatch

import "github.com/dshills/peek/internal/engine"

// BreakpointDispatcher resolves an engine-assigned breakpoint ID to
// its registered callback and invokes it. Implemented by the
// breakpoint manager.
type BreakpointDispatcher interface {
	DispatchBreakpoint(id int, frame engine.Frame) error
}

// WatchpointDispatcher resolves an engine-assigned watchpoint ID to
// its registered callback and invokes it. Implemented by the
// watchpoint manager.
type WatchpointDispatcher interface {
	DispatchWatchpoint(id int, frame engine.Frame, access engine.Access) error
}

// Router is the single native-callback entry point for engine-fired
// hit events. A session installs HandleBreakpoint and HandleWatchpoint
// as the engine's only handlers.
type Router struct {
	frames *FrameScope
	bps    BreakpointDispatcher
	wps    WatchpointDispatcher
}

// NewRouter creates a router publishing hit frames into frames.
func NewRouter(frames *FrameScope) *Router {
	return &Router{frames: frames}
}

// SetBreakpointDispatcher registers the breakpoint manager.
func (r *Router) SetBreakpointDispatcher(d BreakpointDispatcher) {
	r.bps = d
}

// SetWatchpointDispatcher registers the watchpoint manager.
func (r *Router) SetWatchpointDispatcher(d WatchpointDispatcher) {
	r.wps = d
}

// HandleBreakpoint is the one breakpoint-hit entry point the engine
// ever invokes. The hit frame is published for the duration of the
// callback and cleared on every exit path; callback errors and panics
// propagate past the router after the cleanup runs.
func (r *Router) HandleBreakpoint(ev engine.BreakpointEvent) error {
	r.frames.publish(ev.Frame)
	defer r.frames.clear()

	if r.bps == nil {
		return nil
	}
	return r.bps.DispatchBreakpoint(ev.BreakpointID, ev.Frame)
}

// HandleWatchpoint is the one watchpoint-hit entry point the engine
// ever invokes. Frame-scope behavior matches HandleBreakpoint.
func (r *Router) HandleWatchpoint(ev engine.WatchpointEvent) error {
	r.frames.publish(ev.Frame)
	defer r.frames.clear()

	if r.wps == nil {
		return nil
	}
	return r.wps.DispatchWatchpoint(ev.WatchpointID, ev.Frame, ev.Access)
}
