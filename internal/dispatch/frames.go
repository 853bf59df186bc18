package dispatch

import (
	"sync"

	"github.com/dshills/peek/internal/engine"
)

// FrameScope publishes the hit frame for the duration of a dispatch
// callback. Every frame- or thread-dependent operation used inside a
// callback reads the current frame through the scope, including nested
// breakpoint and monitor calls.
type FrameScope struct {
	mu    sync.Mutex
	frame *engine.Frame
}

// NewFrameScope creates an empty frame scope.
func NewFrameScope() *FrameScope {
	return &FrameScope{}
}

// publish installs the hit frame for the duration of a callback.
func (s *FrameScope) publish(f engine.Frame) {
	s.mu.Lock()
	s.frame = &f
	s.mu.Unlock()
}

// clear reverts the scope to "derive from the live selected frame".
func (s *FrameScope) clear() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}

// Active returns the published hit frame, if a dispatch is in flight.
func (s *FrameScope) Active() (engine.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return engine.Frame{}, false
	}
	return *s.frame, true
}

// Current returns the published hit frame when a dispatch is in
// flight, and the live thread's selected frame otherwise.
func (s *FrameScope) Current(eng engine.Engine) engine.Frame {
	if f, ok := s.Active(); ok {
		return f
	}
	return eng.SelectedFrame()
}
