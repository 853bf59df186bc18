package engine

// InvalidAddress is the engine's sentinel for "no load address".
// Symbol-table entries resolving to it must be treated as unresolved.
const InvalidAddress uint64 = 0xffffffffffffffff

// NoOutput is the marker an engine returns from EvaluateObject when an
// expression produced no printable result. The symbol-map loader uses
// it to detect a stale map (see symbol.LoadMap).
const NoOutput = "<no output>"

// Category classifies a symbol-table entry.
type Category int

const (
	// CategoryUnknown is any type the front-end does not track.
	CategoryUnknown Category = iota
	// CategoryCode is a function or other executable symbol.
	CategoryCode
	// CategoryData is a data symbol.
	CategoryData
	// CategoryRuntime is a language-runtime symbol.
	CategoryRuntime
	// CategoryObjCMetaClass is an Objective-C metaclass symbol.
	CategoryObjCMetaClass
)

// String returns a string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryCode:
		return "code"
	case CategoryData:
		return "data"
	case CategoryRuntime:
		return "runtime"
	case CategoryObjCMetaClass:
		return "objc-metaclass"
	default:
		return "unknown"
	}
}

// ParseCategory parses a string into a Category.
func ParseCategory(s string) Category {
	switch s {
	case "code":
		return CategoryCode
	case "data":
		return CategoryData
	case "runtime":
		return CategoryRuntime
	case "objc-metaclass":
		return CategoryObjCMetaClass
	default:
		return CategoryUnknown
	}
}

// Tracked reports whether the category is one the symbol catalog keeps.
func (c Category) Tracked() bool {
	switch c {
	case CategoryCode, CategoryData, CategoryRuntime, CategoryObjCMetaClass:
		return true
	default:
		return false
	}
}

// ModuleInfo describes one binary image loaded in the target.
type ModuleInfo struct {
	// Name is the image's base name (e.g. "libsystem_c.dylib").
	Name string

	// Path is the full on-disk path, when known.
	Path string

	// LoadAddress is the image base after ASLR slide.
	LoadAddress uint64
}

// SymbolInfo is one raw symbol-table entry as reported by the engine.
type SymbolInfo struct {
	// Name is the symbol name; empty for unnamed entries.
	Name string

	// Address is the ASLR-applied load address.
	Address uint64

	// FileAddress is the address as seen in the on-disk binary.
	FileAddress uint64

	// Module is the base name of the containing image.
	Module string

	// Category is the engine's classification of the entry.
	Category Category
}

// Frame identifies one stack frame in a stopped thread.
type Frame struct {
	// ThreadID is the OS-level thread identifier.
	ThreadID uint64

	// ThreadIndex is the engine's ordinal for the thread.
	ThreadIndex int

	// PC is the frame's program counter.
	PC uint64

	// Function is the symbolicated function name, when known.
	Function string
}

// Access describes which memory access triggered a watchpoint.
type Access int

const (
	// AccessUnknown means the engine did not expose the trigger kind.
	AccessUnknown Access = iota
	// AccessRead is a read trigger.
	AccessRead
	// AccessWrite is a write trigger.
	AccessWrite
)

// String returns a string representation of the access kind.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "unknown"
	}
}

// BreakpointEvent is delivered when a registered breakpoint is hit.
type BreakpointEvent struct {
	// BreakpointID is the engine-assigned breakpoint identifier.
	BreakpointID int

	// Frame is the frame the target stopped in.
	Frame Frame
}

// WatchpointEvent is delivered when a registered watchpoint triggers.
type WatchpointEvent struct {
	// WatchpointID is the engine-assigned watchpoint identifier.
	WatchpointID int

	// Frame is the frame the target stopped in.
	Frame Frame

	// Access is the triggering access kind, when the engine exposes it.
	Access Access
}

// BreakpointHandler receives breakpoint hit events. Exactly one handler
// is installed per session; it is the single native-level entry point.
type BreakpointHandler func(BreakpointEvent) error

// WatchpointHandler receives watchpoint hit events.
type WatchpointHandler func(WatchpointEvent) error

// Engine is the set of primitives peek consumes from the native
// debugger. Implementations wrap a real engine (LLDB, a DAP adapter,
// a remote stub); the front-end treats every method as already
// available and never retries a rejected operation.
type Engine interface {
	// Modules enumerates the images loaded in the target, in load order.
	Modules() ([]ModuleInfo, error)

	// ModuleSymbols enumerates the raw symbol table of one image.
	ModuleSymbols(module string) ([]SymbolInfo, error)

	// ResolveAddress returns the best-matching symbol-table entry for a
	// load address. ok is false when the engine knows nothing there.
	ResolveAddress(addr uint64) (info SymbolInfo, ok bool)

	// ResolveName returns every symbol-table entry with the given name.
	ResolveName(name string) ([]SymbolInfo, error)

	// LoadAddress converts an ASLR-independent file address into the
	// current session's load address.
	LoadAddress(fileAddr uint64) (uint64, error)

	// FileAddress converts a load address back into its
	// ASLR-independent file address.
	FileAddress(addr uint64) (uint64, error)

	// CreateBreakpointAtAddress sets a native breakpoint at an address
	// and returns its engine-assigned ID.
	CreateBreakpointAtAddress(addr uint64) (int, error)

	// CreateBreakpointByName sets a native breakpoint on every location
	// matching a symbol name and returns its engine-assigned ID.
	CreateBreakpointByName(name string) (int, error)

	// DeleteBreakpoint removes a native breakpoint.
	DeleteBreakpoint(id int) error

	// EnableBreakpoint toggles a native breakpoint.
	EnableBreakpoint(id int, enabled bool) error

	// SetBreakpointCondition attaches a guard expression to a breakpoint.
	SetBreakpointCondition(id int, condition string) error

	// RegisterBreakpointCallback marks a breakpoint so its hits are
	// delivered to the installed BreakpointHandler.
	RegisterBreakpointCallback(id int) error

	// CreateWatchpoint sets a native watchpoint over [addr, addr+size).
	CreateWatchpoint(addr uint64, size int, read, write bool) (int, error)

	// DeleteWatchpoint removes a native watchpoint.
	DeleteWatchpoint(id int) error

	// SetWatchpointCondition attaches a guard expression to a watchpoint.
	SetWatchpointCondition(id int, condition string) error

	// RegisterWatchpointCallback marks a watchpoint so its hits are
	// delivered to the installed WatchpointHandler.
	RegisterWatchpointCallback(id int) error

	// SetBreakpointHandler installs the single breakpoint-hit entry
	// point. Called once at session construction.
	SetBreakpointHandler(h BreakpointHandler)

	// SetWatchpointHandler installs the single watchpoint-hit entry
	// point. Called once at session construction.
	SetWatchpointHandler(h WatchpointHandler)

	// Continue resumes the target.
	Continue() error

	// Stop halts the target.
	Stop() error

	// StepInto performs one source-level (or instruction) step.
	StepInto(f Frame) error

	// StepOut runs the given frame to its return and leaves the target
	// stopped in the caller. Blocks until the stop event arrives.
	StepOut(f Frame) error

	// SelectedFrame returns the live thread's currently selected frame.
	SelectedFrame() Frame

	// Backtrace returns the call stack of the thread owning f,
	// innermost frame first.
	Backtrace(f Frame) ([]Frame, error)

	// ReturnRegister returns the name of the ABI's return-value
	// register for the target architecture (e.g. "x0", "rax").
	ReturnRegister() string

	// ReadRegister reads a register in the context of a frame.
	ReadRegister(f Frame, name string) (uint64, error)

	// WriteRegister writes a register in the context of a frame.
	WriteRegister(f Frame, name string, value uint64) error

	// ReadMemory reads size bytes from the target.
	ReadMemory(addr uint64, size int) ([]byte, error)

	// WriteMemory writes data into the target and returns the number of
	// bytes written.
	WriteMemory(addr uint64, data []byte) (int, error)

	// Evaluate evaluates an expression in the context of a frame and
	// returns its value as a 64-bit integer.
	Evaluate(f Frame, expression string) (uint64, error)

	// EvaluateObject evaluates an expression and returns the engine's
	// printed object description. Returns NoOutput when the expression
	// produced nothing printable.
	EvaluateObject(f Frame, expression string) (string, error)

	// RunCommand hands a raw command line to the engine and returns its
	// textual output.
	RunCommand(cmd string) (string, error)

	// LoadLibrary loads an external code module into the target and
	// returns its handle. Used by the injection interface.
	LoadLibrary(path string) (uint64, error)
}
