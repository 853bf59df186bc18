package breakpoint

import (
	"fmt"

	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/symbol"
)

// whereKind discriminates location specifiers.
type whereKind int

const (
	whereAddress whereKind = iota
	whereName
	whereModuleName
)

// Where identifies where a breakpoint was set when it was created: a
// raw address, a bare symbol name, or a (name, module) pair. Where is
// a comparable value; two breakpoints conflict when their Where values
// are equal.
type Where struct {
	kind   whereKind
	addr   uint64
	name   string
	module string
}

// WhereAddress locates a breakpoint at a raw load address.
func WhereAddress(addr uint64) Where {
	return Where{kind: whereAddress, addr: addr}
}

// WhereSymbol locates a breakpoint at a symbol's address. It is
// equal to WhereAddress of the same address, so a symbol-specified
// breakpoint conflicts with a raw-address one at the same location.
func WhereSymbol(sym *symbol.Symbol) Where {
	return WhereAddress(sym.Address())
}

// WhereName locates a breakpoint on every location matching a bare
// symbol name.
func WhereName(name string) Where {
	return Where{kind: whereName, name: name}
}

// WhereInModule locates a breakpoint on a name scoped to one module.
// Creating a breakpoint with this specifier fails with
// ErrModuleScopedName; the gap is deliberate.
func WhereInModule(name, module string) Where {
	return Where{kind: whereModuleName, name: name, module: module}
}

// String returns a readable representation of the specifier.
func (w Where) String() string {
	switch w.kind {
	case whereName:
		return w.name
	case whereModuleName:
		return fmt.Sprintf("%s{%s}", w.name, w.module)
	default:
		return fmt.Sprintf("%#x", w.addr)
	}
}

// Hit carries the context of one breakpoint hit into a callback.
type Hit struct {
	// Frame is the frame the target stopped in.
	Frame engine.Frame

	// Breakpoint is the logical breakpoint that fired.
	Breakpoint *Breakpoint
}

// Callback runs when a breakpoint is hit. Unless it resumes the
// target explicitly, the process stays stopped. An error (or panic)
// escaping a callback propagates to the session loop's supervisor;
// the dispatch router only guarantees frame-context cleanup.
type Callback func(Hit) error

// Breakpoint is one logical, user-facing breakpoint backed by a
// native engine breakpoint.
type Breakpoint struct {
	mgr *Manager

	id          int
	where       Where
	condition   string
	guarded     bool
	callback    Callback
	description string
	label       string
	enabled     bool
}

// ID returns the engine-assigned breakpoint identifier.
func (b *Breakpoint) ID() int { return b.id }

// Where returns the specifier used at creation.
func (b *Breakpoint) Where() Where { return b.where }

// Condition returns the guard expression, if any.
func (b *Breakpoint) Condition() string { return b.condition }

// Guarded reports whether the breakpoint is protected from bulk
// removal.
func (b *Breakpoint) Guarded() bool { return b.guarded }

// Description returns the free-text description, if any.
func (b *Breakpoint) Description() string { return b.description }

// Label returns the breakpoint's name label, if any.
func (b *Breakpoint) Label() string { return b.label }

// Enabled reports whether the breakpoint is enabled.
func (b *Breakpoint) Enabled() bool { return b.enabled }

// SetEnabled toggles the breakpoint in the engine.
func (b *Breakpoint) SetEnabled(enabled bool) error {
	if err := b.mgr.eng.EnableBreakpoint(b.id, enabled); err != nil {
		return fmt.Errorf("toggling breakpoint #%d: %w", b.id, err)
	}
	b.mgr.mu.Lock()
	b.enabled = enabled
	b.mgr.mu.Unlock()
	return nil
}

// SetCondition attaches (or clears) the guard expression.
func (b *Breakpoint) SetCondition(condition string) error {
	if err := b.mgr.eng.SetBreakpointCondition(b.id, condition); err != nil {
		return fmt.Errorf("setting condition on breakpoint #%d: %w", b.id, err)
	}
	b.mgr.mu.Lock()
	b.condition = condition
	b.mgr.mu.Unlock()
	return nil
}

// Remove deletes the breakpoint through its manager, subject to the
// guard check.
func (b *Breakpoint) Remove(removeGuarded bool) error {
	return b.mgr.Remove(b, removeGuarded)
}

// String returns a one-line summary used by show-style output.
func (b *Breakpoint) String() string {
	state := "enabled"
	if !b.enabled {
		state = "disabled"
	}
	guard := "not-guarded"
	if b.guarded {
		guard = "guarded"
	}
	s := fmt.Sprintf("Breakpoint #%d (%s, %s) at %s", b.id, state, guard, b.where)
	if b.description != "" {
		s += " - " + b.description
	}
	return s
}
