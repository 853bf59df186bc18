// Package enginetest provides a scriptable in-memory Engine for tests.
//
// The fake keeps plantable module/symbol tables, counts per-module
// symbol scans (for population idempotency checks), and lets tests fire
// breakpoint and watchpoint events as if the target had stopped.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/dshills/peek/internal/engine"
)

// Fake is an in-memory engine.Engine implementation.
type Fake struct {
	mu sync.Mutex

	modules []engine.ModuleInfo
	symbols map[string][]engine.SymbolInfo

	// ScanCounts records how many times each module's symbol table was
	// enumerated through ModuleSymbols.
	ScanCounts map[string]int

	nextBreakpointID int
	nextWatchpointID int
	breakpoints      map[int]*FakeBreakpoint
	watchpoints      map[int]*FakeWatchpoint

	bpHandler engine.BreakpointHandler
	wpHandler engine.WatchpointHandler

	// Registers backs ReadRegister/WriteRegister for every frame.
	Registers map[string]uint64

	// ExprResults scripts Evaluate by expression text.
	ExprResults map[string]uint64

	// ObjectResults scripts EvaluateObject by expression text. Missing
	// expressions yield engine.NoOutput.
	ObjectResults map[string]string

	// Commands records every RunCommand invocation.
	Commands []string

	// CommandOutput scripts RunCommand by command text.
	CommandOutput map[string]string

	// Selected is the live thread's selected frame.
	Selected engine.Frame

	// Caller is the frame StepOut lands in.
	Caller engine.Frame

	// CallStack backs Backtrace.
	CallStack []engine.Frame

	// StepOutCount counts StepOut calls.
	StepOutCount int

	// StepOutFunc overrides the default StepOut behavior when set.
	StepOutFunc func(engine.Frame) error

	// LoadLibraryFunc scripts LoadLibrary; nil means handle 1, no error.
	LoadLibraryFunc func(path string) (uint64, error)

	memory map[uint64]byte

	// Continued counts Continue calls.
	Continued int

	// Stopped counts Stop calls.
	Stopped int
}

// FakeBreakpoint is the fake's record of a native breakpoint.
type FakeBreakpoint struct {
	ID         int
	Address    uint64
	Name       string
	Condition  string
	Enabled    bool
	Registered bool
}

// FakeWatchpoint is the fake's record of a native watchpoint.
type FakeWatchpoint struct {
	ID         int
	Address    uint64
	Size       int
	Read       bool
	Write      bool
	Condition  string
	Registered bool
}

// New creates an empty fake engine.
func New() *Fake {
	return &Fake{
		symbols:       make(map[string][]engine.SymbolInfo),
		ScanCounts:    make(map[string]int),
		breakpoints:   make(map[int]*FakeBreakpoint),
		watchpoints:   make(map[int]*FakeWatchpoint),
		Registers:     make(map[string]uint64),
		ExprResults:   make(map[string]uint64),
		ObjectResults: make(map[string]string),
		CommandOutput: make(map[string]string),
		memory:        make(map[uint64]byte),
	}
}

// AddModule plants a module and its symbol table.
func (f *Fake) AddModule(name string, loadAddr uint64, syms ...engine.SymbolInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modules = append(f.modules, engine.ModuleInfo{Name: name, Path: "/usr/lib/" + name, LoadAddress: loadAddr})
	f.symbols[name] = append(f.symbols[name], syms...)
}

// Sym is a shorthand for building a planted SymbolInfo.
func Sym(name string, addr uint64, module string, cat engine.Category) engine.SymbolInfo {
	return engine.SymbolInfo{
		Name:        name,
		Address:     addr,
		FileAddress: addr &^ 0x100000000, // fixed fake slide
		Module:      module,
		Category:    cat,
	}
}

// Modules implements engine.Engine.
func (f *Fake) Modules() ([]engine.ModuleInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.ModuleInfo, len(f.modules))
	copy(out, f.modules)
	return out, nil
}

// ModuleSymbols implements engine.Engine and counts the scan.
func (f *Fake) ModuleSymbols(module string) ([]engine.SymbolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	syms, ok := f.symbols[module]
	if !ok {
		return nil, engine.Reject("ModuleSymbols", fmt.Sprintf("unknown module %q", module))
	}
	f.ScanCounts[module]++
	out := make([]engine.SymbolInfo, len(syms))
	copy(out, syms)
	return out, nil
}

// ResolveAddress implements engine.Engine with exact-address matching.
func (f *Fake) ResolveAddress(addr uint64) (engine.SymbolInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, syms := range f.symbols {
		for _, s := range syms {
			if s.Address == addr {
				return s, true
			}
		}
	}
	return engine.SymbolInfo{}, false
}

// ResolveName implements engine.Engine.
func (f *Fake) ResolveName(name string) ([]engine.SymbolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []engine.SymbolInfo
	for _, syms := range f.symbols {
		for _, s := range syms {
			if s.Name == name {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// LoadAddress implements engine.Engine using the fake's fixed slide.
func (f *Fake) LoadAddress(fileAddr uint64) (uint64, error) {
	return fileAddr | 0x100000000, nil
}

// FileAddress implements engine.Engine using the fake's fixed slide.
func (f *Fake) FileAddress(addr uint64) (uint64, error) {
	return addr &^ 0x100000000, nil
}

// CreateBreakpointAtAddress implements engine.Engine.
func (f *Fake) CreateBreakpointAtAddress(addr uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBreakpointID++
	id := f.nextBreakpointID
	f.breakpoints[id] = &FakeBreakpoint{ID: id, Address: addr, Enabled: true}
	return id, nil
}

// CreateBreakpointByName implements engine.Engine.
func (f *Fake) CreateBreakpointByName(name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBreakpointID++
	id := f.nextBreakpointID
	f.breakpoints[id] = &FakeBreakpoint{ID: id, Name: name, Enabled: true}
	return id, nil
}

// DeleteBreakpoint implements engine.Engine.
func (f *Fake) DeleteBreakpoint(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.breakpoints[id]; !ok {
		return engine.Reject("DeleteBreakpoint", fmt.Sprintf("no breakpoint %d", id))
	}
	delete(f.breakpoints, id)
	return nil
}

// EnableBreakpoint implements engine.Engine.
func (f *Fake) EnableBreakpoint(id int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bp, ok := f.breakpoints[id]
	if !ok {
		return engine.Reject("EnableBreakpoint", fmt.Sprintf("no breakpoint %d", id))
	}
	bp.Enabled = enabled
	return nil
}

// SetBreakpointCondition implements engine.Engine.
func (f *Fake) SetBreakpointCondition(id int, condition string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bp, ok := f.breakpoints[id]
	if !ok {
		return engine.Reject("SetBreakpointCondition", fmt.Sprintf("no breakpoint %d", id))
	}
	bp.Condition = condition
	return nil
}

// RegisterBreakpointCallback implements engine.Engine.
func (f *Fake) RegisterBreakpointCallback(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bp, ok := f.breakpoints[id]
	if !ok {
		return engine.Reject("RegisterBreakpointCallback", fmt.Sprintf("no breakpoint %d", id))
	}
	bp.Registered = true
	return nil
}

// CreateWatchpoint implements engine.Engine.
func (f *Fake) CreateWatchpoint(addr uint64, size int, read, write bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextWatchpointID++
	id := f.nextWatchpointID
	f.watchpoints[id] = &FakeWatchpoint{ID: id, Address: addr, Size: size, Read: read, Write: write}
	return id, nil
}

// DeleteWatchpoint implements engine.Engine.
func (f *Fake) DeleteWatchpoint(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watchpoints[id]; !ok {
		return engine.Reject("DeleteWatchpoint", fmt.Sprintf("no watchpoint %d", id))
	}
	delete(f.watchpoints, id)
	return nil
}

// SetWatchpointCondition implements engine.Engine.
func (f *Fake) SetWatchpointCondition(id int, condition string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wp, ok := f.watchpoints[id]
	if !ok {
		return engine.Reject("SetWatchpointCondition", fmt.Sprintf("no watchpoint %d", id))
	}
	wp.Condition = condition
	return nil
}

// RegisterWatchpointCallback implements engine.Engine.
func (f *Fake) RegisterWatchpointCallback(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wp, ok := f.watchpoints[id]
	if !ok {
		return engine.Reject("RegisterWatchpointCallback", fmt.Sprintf("no watchpoint %d", id))
	}
	wp.Registered = true
	return nil
}

// SetBreakpointHandler implements engine.Engine.
func (f *Fake) SetBreakpointHandler(h engine.BreakpointHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bpHandler = h
}

// SetWatchpointHandler implements engine.Engine.
func (f *Fake) SetWatchpointHandler(h engine.WatchpointHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wpHandler = h
}

// FireBreakpoint simulates the target stopping at a breakpoint. It
// delivers the event only when the breakpoint exists, is enabled and
// had its callback registered, matching native dispatch preconditions.
func (f *Fake) FireBreakpoint(id int, frame engine.Frame) error {
	f.mu.Lock()
	bp, ok := f.breakpoints[id]
	h := f.bpHandler
	f.mu.Unlock()

	if !ok || !bp.Enabled || !bp.Registered || h == nil {
		return nil
	}
	return h(engine.BreakpointEvent{BreakpointID: id, Frame: frame})
}

// FireWatchpoint simulates a watchpoint trigger.
func (f *Fake) FireWatchpoint(id int, frame engine.Frame, access engine.Access) error {
	f.mu.Lock()
	wp, ok := f.watchpoints[id]
	h := f.wpHandler
	f.mu.Unlock()

	if !ok || !wp.Registered || h == nil {
		return nil
	}
	return h(engine.WatchpointEvent{WatchpointID: id, Frame: frame, Access: access})
}

// Breakpoint returns the fake's record for a native breakpoint ID.
func (f *Fake) Breakpoint(id int) (FakeBreakpoint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bp, ok := f.breakpoints[id]
	if !ok {
		return FakeBreakpoint{}, false
	}
	return *bp, true
}

// Watchpoint returns the fake's record for a native watchpoint ID.
func (f *Fake) Watchpoint(id int) (FakeWatchpoint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wp, ok := f.watchpoints[id]
	if !ok {
		return FakeWatchpoint{}, false
	}
	return *wp, true
}

// BreakpointCount returns the number of live native breakpoints.
func (f *Fake) BreakpointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.breakpoints)
}

// WatchpointCount returns the number of live native watchpoints.
func (f *Fake) WatchpointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchpoints)
}

// Continue implements engine.Engine.
func (f *Fake) Continue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Continued++
	return nil
}

// Stop implements engine.Engine.
func (f *Fake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped++
	return nil
}

// StepInto implements engine.Engine.
func (f *Fake) StepInto(engine.Frame) error { return nil }

// StepOut implements engine.Engine. By default it counts the unwind
// and selects the planted caller frame.
func (f *Fake) StepOut(from engine.Frame) error {
	if f.StepOutFunc != nil {
		f.mu.Lock()
		f.StepOutCount++
		f.mu.Unlock()
		return f.StepOutFunc(from)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StepOutCount++
	f.Selected = f.Caller
	return nil
}

// SelectedFrame implements engine.Engine.
func (f *Fake) SelectedFrame() engine.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Selected
}

// Backtrace implements engine.Engine.
func (f *Fake) Backtrace(engine.Frame) ([]engine.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.Frame, len(f.CallStack))
	copy(out, f.CallStack)
	return out, nil
}

// ReturnRegister implements engine.Engine; the fake models an arm64
// target.
func (f *Fake) ReturnRegister() string { return "x0" }

// ReadRegister implements engine.Engine.
func (f *Fake) ReadRegister(_ engine.Frame, name string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Registers[name]
	if !ok {
		return 0, engine.Reject("ReadRegister", fmt.Sprintf("no register %q", name))
	}
	return v, nil
}

// WriteRegister implements engine.Engine.
func (f *Fake) WriteRegister(_ engine.Frame, name string, value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Registers[name] = value
	return nil
}

// SetMemory plants bytes in the fake target's address space.
func (f *Fake) SetMemory(addr uint64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range data {
		f.memory[addr+uint64(i)] = b
	}
}

// ReadMemory implements engine.Engine. Unplanted bytes read as zero.
func (f *Fake) ReadMemory(addr uint64, size int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, size)
	for i := range out {
		out[i] = f.memory[addr+uint64(i)]
	}
	return out, nil
}

// WriteMemory implements engine.Engine.
func (f *Fake) WriteMemory(addr uint64, data []byte) (int, error) {
	f.SetMemory(addr, data)
	return len(data), nil
}

// Evaluate implements engine.Engine from the scripted ExprResults map.
func (f *Fake) Evaluate(_ engine.Frame, expression string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.ExprResults[expression]
	if !ok {
		return 0, engine.Reject("Evaluate", fmt.Sprintf("cannot evaluate %q", expression))
	}
	return v, nil
}

// EvaluateObject implements engine.Engine. Missing scripts yield the
// NoOutput marker rather than an error, matching native po behavior.
func (f *Fake) EvaluateObject(_ engine.Frame, expression string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.ObjectResults[expression]; ok {
		return v, nil
	}
	return engine.NoOutput, nil
}

// RunCommand implements engine.Engine and records the command.
func (f *Fake) RunCommand(cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, cmd)
	return f.CommandOutput[cmd], nil
}

// LoadLibrary implements engine.Engine.
func (f *Fake) LoadLibrary(path string) (uint64, error) {
	if f.LoadLibraryFunc != nil {
		return f.LoadLibraryFunc(path)
	}
	return 1, nil
}

var _ engine.Engine = (*Fake)(nil)
