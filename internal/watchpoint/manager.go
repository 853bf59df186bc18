package watchpoint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/peek/internal/engine"
)

// Logger is the subset of the application logger the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Manager tracks the watchpoints of one debug session.
type Manager struct {
	eng engine.Engine
	log Logger

	mu          sync.RWMutex
	watchpoints map[int]*Watchpoint
}

// NewManager creates an empty watchpoint manager bound to an engine.
func NewManager(eng engine.Engine, log Logger) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	return &Manager{
		eng:         eng,
		log:         log,
		watchpoints: make(map[int]*Watchpoint),
	}
}

// AddOptions configures a new watchpoint.
type AddOptions struct {
	// Size is the watched range in bytes. Must be 1, 2, 4 or 8.
	Size int

	// Read watches read accesses.
	Read bool

	// Write watches write accesses.
	Write bool

	// Condition is an optional engine expression guarding the hit.
	Condition string
}

// DefaultAddOptions watches a full word for both access kinds.
func DefaultAddOptions() AddOptions {
	return AddOptions{Size: 8, Read: true, Write: true}
}

// Add sets a watchpoint over [addr, addr+opts.Size). A nil opts uses
// DefaultAddOptions. A nil callback still stops the target on hit;
// only hit dispatch is skipped.
func (m *Manager) Add(addr uint64, callback Callback, opts *AddOptions) (*Watchpoint, error) {
	if opts == nil {
		def := DefaultAddOptions()
		opts = &def
	}
	switch opts.Size {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrBadSize, opts.Size)
	}
	if !opts.Read && !opts.Write {
		return nil, ErrNoAccess
	}

	id, err := m.eng.CreateWatchpoint(addr, opts.Size, opts.Read, opts.Write)
	if err != nil {
		return nil, fmt.Errorf("creating watchpoint at %#x: %w", addr, err)
	}
	if opts.Condition != "" {
		if err := m.eng.SetWatchpointCondition(id, opts.Condition); err != nil {
			return nil, fmt.Errorf("setting watchpoint condition: %w", err)
		}
	}
	if callback != nil {
		if err := m.eng.RegisterWatchpointCallback(id); err != nil {
			return nil, fmt.Errorf("registering watchpoint callback: %w", err)
		}
	}

	wp := &Watchpoint{
		mgr:       m,
		id:        id,
		address:   addr,
		size:      opts.Size,
		read:      opts.Read,
		write:     opts.Write,
		condition: opts.Condition,
		callback:  callback,
		enabled:   true,
	}

	m.mu.Lock()
	m.watchpoints[id] = wp
	m.mu.Unlock()

	m.log.Info("watchpoint #%d has been set at %#x", id, addr)
	return wp, nil
}

// Get returns the watchpoint with an ID.
func (m *Manager) Get(id int) (*Watchpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wp, ok := m.watchpoints[id]
	return wp, ok
}

// Remove deletes a watchpoint from the engine and the registry. The
// registry entry survives an engine failure so the watchpoint stays
// visible for retry.
func (m *Manager) Remove(wp *Watchpoint) error {
	if err := m.eng.DeleteWatchpoint(wp.id); err != nil {
		return fmt.Errorf("removing watchpoint #%d: %w", wp.id, err)
	}
	m.mu.Lock()
	delete(m.watchpoints, wp.id)
	m.mu.Unlock()
	m.log.Debug("watchpoint #%d removed", wp.id)
	return nil
}

// RemoveID deletes the watchpoint with an ID.
func (m *Manager) RemoveID(id int) error {
	wp, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: #%d", ErrWatchpointAbsent, id)
	}
	return m.Remove(wp)
}

// Clear removes every watchpoint. The set is snapshotted first so
// removals during iteration cannot skip entries.
func (m *Manager) Clear() error {
	for _, wp := range m.All() {
		if err := m.Remove(wp); err != nil {
			return err
		}
	}
	return nil
}

// All returns the watchpoints sorted by ID.
func (m *Manager) All() []*Watchpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wps := make([]*Watchpoint, 0, len(m.watchpoints))
	for _, wp := range m.watchpoints {
		wps = append(wps, wp)
	}
	sort.Slice(wps, func(i, j int) bool { return wps[i].id < wps[j].id })
	return wps
}

// Len returns the number of tracked watchpoints.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchpoints)
}

// Show logs a summary line per watchpoint.
func (m *Manager) Show() {
	wps := m.All()
	if len(wps) == 0 {
		m.log.Info("no watchpoints")
		return
	}
	for _, wp := range wps {
		m.log.Info("%s", wp)
	}
}

// DispatchWatchpoint routes a hit to the owning callback. Hits for
// unknown IDs or callback-less watchpoints are ignored; the target
// was already stopped by the hardware, which is the point of a bare
// watchpoint.
func (m *Manager) DispatchWatchpoint(id int, frame engine.Frame, access engine.Access) error {
	m.mu.RLock()
	wp, ok := m.watchpoints[id]
	m.mu.RUnlock()
	if !ok || wp.callback == nil {
		return nil
	}
	return wp.callback(Hit{Frame: frame, Access: access, Watchpoint: wp})
}
