package breakpoint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/symbol"
)

// Logger is the subset of the session logger the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Confirmer asks the operator a yes/no question. Used by the conflict
// policy when Override is off.
type Confirmer interface {
	Confirm(prompt string) bool
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// alwaysConfirm answers yes without prompting.
type alwaysConfirm struct{}

func (alwaysConfirm) Confirm(string) bool { return true }

// Manager owns the session's logical breakpoints, keyed by their
// engine-assigned IDs.
type Manager struct {
	eng     engine.Engine
	catalog *symbol.Catalog
	log     Logger
	confirm Confirmer

	mu          sync.RWMutex
	breakpoints map[int]*Breakpoint
}

// NewManager creates a breakpoint manager. log and confirm may be nil,
// in which case logging is discarded and conflict prompts auto-accept.
func NewManager(eng engine.Engine, catalog *symbol.Catalog, log Logger, confirm Confirmer) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	if confirm == nil {
		confirm = alwaysConfirm{}
	}
	return &Manager{
		eng:         eng,
		catalog:     catalog,
		log:         log,
		confirm:     confirm,
		breakpoints: make(map[int]*Breakpoint),
	}
}

// AddOptions configures Add.
type AddOptions struct {
	// Condition is an optional engine expression guarding the hit.
	Condition string

	// Guarded protects the breakpoint from removal without an
	// explicit override.
	Guarded bool

	// Override controls conflict resolution: when a tracked breakpoint
	// has an equal Where, true removes it silently and false asks the
	// Confirmer first.
	Override bool

	// Description is optional free text shown by Show.
	Description string

	// Label is an optional name for label-based lookup.
	Label string
}

// DefaultAddOptions returns the options Add uses for nil opts:
// override on, everything else off.
func DefaultAddOptions() AddOptions {
	return AddOptions{Override: true}
}

// Add creates a breakpoint at where. If any currently tracked
// breakpoint has an equal where, it is removed first: silently when
// opts.Override is set, after operator confirmation otherwise. The
// callback is registered with the engine's dispatch entry point only
// when non-nil; a breakpoint without a callback relies on the caller's
// own logging and continue policy.
func (m *Manager) Add(where Where, callback Callback, opts *AddOptions) (*Breakpoint, error) {
	if opts == nil {
		def := DefaultAddOptions()
		opts = &def
	}

	// The (name, module) specifier is a known gap; fail before any
	// conflict resolution can mutate state.
	if where.kind == whereModuleName {
		return nil, fmt.Errorf("%w: %s", ErrModuleScopedName, where)
	}

	m.resolveConflicts(where, opts.Override)

	var (
		id  int
		err error
	)
	switch where.kind {
	case whereAddress:
		id, err = m.eng.CreateBreakpointAtAddress(where.addr)
	case whereName:
		id, err = m.eng.CreateBreakpointByName(where.name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating breakpoint at %s: %w", where, err)
	}

	if opts.Condition != "" {
		if err := m.eng.SetBreakpointCondition(id, opts.Condition); err != nil {
			return nil, fmt.Errorf("setting condition on breakpoint #%d: %w", id, err)
		}
	}
	if callback != nil {
		if err := m.eng.RegisterBreakpointCallback(id); err != nil {
			return nil, fmt.Errorf("registering callback for breakpoint #%d: %w", id, err)
		}
	}

	bp := &Breakpoint{
		mgr:         m,
		id:          id,
		where:       where,
		condition:   opts.Condition,
		guarded:     opts.Guarded,
		callback:    callback,
		description: opts.Description,
		label:       opts.Label,
		enabled:     true,
	}

	m.mu.Lock()
	m.breakpoints[id] = bp
	m.mu.Unlock()

	m.log.Info("breakpoint #%d has been set at %s", id, where)
	return bp, nil
}

// resolveConflicts removes tracked breakpoints whose where equals the
// new one, honoring the override/prompt policy. Once the replacement
/// is decided the removal is unconditional: the guard protects against
// stray removals, not against replacement at the same location, and
// letting it stand would leave two live breakpoints at one where.
func (m *Manager) resolveConflicts(where Where, override bool) {
	m.mu.RLock()
	var conflicting []*Breakpoint
	for _, bp := range m.breakpoints {
		if bp.where == where {
			conflicting = append(conflicting, bp)
		}
	}
	m.mu.RUnlock()

	if len(conflicting) == 0 {
		return
	}
	if !override {
		prompt := fmt.Sprintf("a breakpoint already exists at %s; delete the previous one?", where)
		if !m.confirm.Confirm(prompt) {
			return
		}
	}
	for _, bp := range conflicting {
		if err := m.Remove(bp, true); err != nil {
			m.log.Warn("could not remove conflicting breakpoint #%d: %v", bp.id, err)
		}
	}
}

// Get returns a breakpoint by its engine-assigned ID.
func (m *Manager) Get(id int) (*Breakpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bp, ok := m.breakpoints[id]
	return bp, ok
}

// GetByLabel returns the breakpoint carrying a label. The lookup
/// requires uniqueness: zero matches fail with ErrBreakpointAbsent and
// several matches fail with ErrAmbiguousLabel, so callers can offer
// disambiguation.
func (m *Manager) GetByLabel(label string) (*Breakpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *Breakpoint
	for _, bp := range m.breakpoints {
		if bp.label != label {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousLabel, label)
		}
		found = bp
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrBreakpointAbsent, label)
	}
	return found, nil
}

// Remove deletes a breakpoint. A guarded breakpoint is left untouched
// unless removeGuarded is set; that outcome is a logged no-op, not an
// error, since the guard is routine operator protection. The native
// deletion and the bookkeeping drop happen atomically from the
// caller's perspective: an engine failure leaves the entry tracked.
func (m *Manager) Remove(bp *Breakpoint, removeGuarded bool) error {
	if bp.guarded && !removeGuarded {
		m.log.Warn("remove request for guarded breakpoint #%d is ignored", bp.id)
		return nil
	}

	if err := m.eng.DeleteBreakpoint(bp.id); err != nil {
		return fmt.Errorf("removing breakpoint #%d: %w", bp.id, err)
	}

	m.mu.Lock()
	delete(m.breakpoints, bp.id)
	m.mu.Unlock()

	m.log.Debug("breakpoint #%d has been removed", bp.id)
	return nil
}

// RemoveID removes a breakpoint by its engine-assigned ID.
func (m *Manager) RemoveID(id int, removeGuarded bool) error {
	bp, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: #%d", ErrBreakpointAbsent, id)
	}
	return m.Remove(bp, removeGuarded)
}

// Clear removes all non-guarded breakpoints, or all of them when
// removeGuarded is set. The list is snapshotted before iterating since
// removal mutates the live collection.
func (m *Manager) Clear(removeGuarded bool) error {
	for _, bp := range m.All() {
		if bp.guarded && !removeGuarded {
			continue
		}
		if err := m.Remove(bp, removeGuarded); err != nil {
			return err
		}
	}
	return nil
}

// All returns a snapshot of the tracked breakpoints, ordered by ID.
func (m *Manager) All() []*Breakpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Breakpoint, 0, len(m.breakpoints))
	for _, bp := range m.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of tracked breakpoints.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.breakpoints)
}

// Show logs every tracked breakpoint.
func (m *Manager) Show() {
	bps := m.All()
	if len(bps) == 0 {
		m.log.Info("no breakpoints")
		return
	}
	for _, bp := range bps {
		m.log.Info("%s", bp)
	}
}

// DispatchBreakpoint implements dispatch.BreakpointDispatcher: it
// resolves the engine-assigned ID and forwards the hit to the
// registered callback. Unknown IDs and callback-less breakpoints are
// a no-op; callback failures propagate untouched.
func (m *Manager) DispatchBreakpoint(id int, frame engine.Frame) error {
	m.mu.RLock()
	bp, ok := m.breakpoints[id]
	m.mu.RUnlock()

	if !ok || bp.callback == nil {
		return nil
	}
	return bp.callback(Hit{Frame: frame, Breakpoint: bp})
}
