package watchpoint

import (
	"fmt"

	"github.com/dshills/peek/internal/engine"
)

// Hit carries the context of a single watchpoint trigger.
type Hit struct {
	// Frame is the stack frame where the access happened.
	Frame engine.Frame

	// Access is the triggering access kind, when the engine exposes it.
	Access engine.Access

	// Watchpoint is the triggered watchpoint.
	Watchpoint *Watchpoint
}

// Callback handles a watchpoint hit. A non-nil error aborts further
// processing of the hit and is surfaced to the session.
type Callback func(Hit) error

// Watchpoint is a registered memory watch.
type Watchpoint struct {
	mgr *Manager

	id        int
	address   uint64
	size      int
	read      bool
	write     bool
	condition string
	callback  Callback
	enabled   bool
}

// ID returns the engine-assigned watchpoint identifier.
func (w *Watchpoint) ID() int { return w.id }

// Address returns the watched base address.
func (w *Watchpoint) Address() uint64 { return w.address }

// Size returns the watched range size in bytes.
func (w *Watchpoint) Size() int { return w.size }

// Read reports whether read accesses trigger the watchpoint.
func (w *Watchpoint) Read() bool { return w.read }

// Write reports whether write accesses trigger the watchpoint.
func (w *Watchpoint) Write() bool { return w.write }

// Condition returns the guard expression, if any.
func (w *Watchpoint) Condition() string { return w.condition }

// SetCondition replaces the guard expression on the live watchpoint.
func (w *Watchpoint) SetCondition(condition string) error {
	if err := w.mgr.eng.SetWatchpointCondition(w.id, condition); err != nil {
		return fmt.Errorf("setting watchpoint condition: %w", err)
	}
	w.condition = condition
	return nil
}

// Remove deletes the watchpoint.
func (w *Watchpoint) Remove() error {
	return w.mgr.Remove(w)
}

// String summarizes the watchpoint for listings.
func (w *Watchpoint) String() string {
	access := ""
	if w.read {
		access += "r"
	}
	if w.write {
		access += "w"
	}
	s := fmt.Sprintf("watchpoint #%d %#x (%d bytes, %s)", w.id, w.address, w.size, access)
	if w.condition != "" {
		s += fmt.Sprintf(" when %s", w.condition)
	}
	return s
}
