package breakpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/symbol"
)

// formatKind discriminates built-in monitor value formats.
type formatKind int

const (
	formatHex formatKind = iota
	formatString
	formatDescription
	formatPrintObject
	formatStdString
	formatCustom
)

// FormatFunc renders a value for a custom monitor format.
type FormatFunc func(value *symbol.Symbol) (string, error)

// Format selects how a monitored register, expression or return value
// is rendered in the hit log line.
type Format struct {
	kind   formatKind
	custom FormatFunc
}

// Built-in monitor formats.
var (
	// FormatHex renders the raw value in hex.
	FormatHex = Format{kind: formatHex}

	// FormatString renders the value as a NUL-terminated string.
	FormatString = Format{kind: formatString}

	// FormatDescription renders via the target's CFCopyDescription.
	FormatDescription = Format{kind: formatDescription}

	// FormatPrintObject renders via the engine's print-object command.
	FormatPrintObject = Format{kind: formatPrintObject}

	// FormatStdString renders the value as a std::string.
	FormatStdString = Format{kind: formatStdString}
)

// CustomFormat renders through a user-supplied function.
func CustomFormat(fn FormatFunc) Format {
	return Format{kind: formatCustom, custom: fn}
}

// String returns the format's mnemonic. Format holds a func field, so
// callers compare formats through this rather than with ==.
func (f Format) String() string {
	switch f.kind {
	case formatHex:
		return "x"
	case formatString:
		return "s"
	case formatDescription:
		return "cf"
	case formatPrintObject:
		return "po"
	case formatStdString:
		return "std::string"
	case formatCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseFormat maps the scripting-surface format mnemonics to formats:
// "x" hex, "s" string, "cf" object description, "po" print-object,
// "std::string" std-string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "x":
		return FormatHex, nil
	case "s":
		return FormatString, nil
	case "cf":
		return FormatDescription, nil
	case "po":
		return FormatPrintObject, nil
	case "std::string":
		return FormatStdString, nil
	default:
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// MonitorOptions configures a monitor breakpoint. Every option is
// consumed when the callback is built; the options are not stored.
type MonitorOptions struct {
	// Condition, Guarded, Override, Description and Label behave as in
	// AddOptions.
	Condition   string
	Guarded     bool
	Override    bool
	Description string
	Label       string

	// Regs prints the named registers using the given formats.
	Regs map[string]Format

	// Exprs evaluates and prints engine expressions.
	Exprs map[string]Format

	// RetVal, when non-nil, runs the frame to its return and prints
	// the return value in the given format.
	RetVal *Format

	// Stop leaves the process stopped after the hit instead of
	// resuming it.
	Stop bool

	// Backtrace prints the call stack. The frame is unwound to the
	// caller first; a backtrace taken mid-call is meaningless for the
	// log-arguments-then-return idiom.
	Backtrace bool

	// Commands are raw engine commands run after the log line.
	Commands []string

	// ForceReturn short-circuits the function: the frame is unwound
	// and the return-value register is set to the given value.
	ForceReturn *uint64

	// Name overrides the symbol name resolved from the hit PC in the
	// log line.
	Name string
}

// DefaultMonitorOptions returns monitor options with override on.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{Override: true}
}

// AddMonitor creates a breakpoint whose callback implements the
// monitor behavior: resolve the symbol at the hit PC, render the
// requested registers and expressions, optionally force a return,
// capture a backtrace or the return value (unwinding to the caller at
// most once even when several options need it), emit one structured
// log line, run attached commands, and resume the target unless Stop
// is set.
func (m *Manager) AddMonitor(where Where, opts MonitorOptions) (*Breakpoint, error) {
	callback := m.monitorCallback(opts)
	return m.Add(where, callback, &AddOptions{
		Condition:   opts.Condition,
		Guarded:     opts.Guarded,
		Override:    opts.Override,
		Description: opts.Description,
		Label:       opts.Label,
	})
}

func (m *Manager) monitorCallback(opts MonitorOptions) Callback {
	return func(hit Hit) error {
		sym := m.catalog.Get(hit.Frame.PC)
		name := opts.Name
		if name == "" {
			name = sym.Name()
		}
		if name == "" {
			name = fmt.Sprintf("%#x", hit.Frame.PC)
		}

		var msg strings.Builder
		fmt.Fprintf(&msg, "#%d %#x %s - thread #%d:%#x",
			hit.Breakpoint.ID(), sym.Address(), name, hit.Frame.ThreadIndex, hit.Frame.ThreadID)

		// Reads before any unwind see the callee's frame.
		frame := hit.Frame

		if len(opts.Regs) > 0 {
			msg.WriteString("\nregs:")
			for _, reg := range sortedKeys(opts.Regs) {
				value, err := m.eng.ReadRegister(frame, reg)
				if err != nil {
					fmt.Fprintf(&msg, "\n\t%s = (error: %v)", reg, err)
					continue
				}
				fmt.Fprintf(&msg, "\n\t%s = %s", reg, m.renderValue(opts.Regs[reg], frame, value))
			}
		}

		if len(opts.Exprs) > 0 {
			msg.WriteString("\nexpr:")
			for _, expr := range sortedKeys(opts.Exprs) {
				value, err := m.eng.Evaluate(frame, expr)
				if err != nil {
					fmt.Fprintf(&msg, "\n\t%s = (error: %v)", expr, err)
					continue
				}
				fmt.Fprintf(&msg, "\n\t%s = %s", expr, m.renderValue(opts.Exprs[expr], frame, value))
			}
		}

		// Force-return, backtrace and return-value capture all need
		// the caller's frame; unwind at most once, before any read
		// that depends on post-return state.
		unwound := false
		unwind := func() error {
			if unwound {
				return nil
			}
			if err := m.eng.StepOut(hit.Frame); err != nil {
				return fmt.Errorf("unwinding to caller: %w", err)
			}
			unwound = true
			frame = m.eng.SelectedFrame()
			return nil
		}

		if opts.ForceReturn != nil {
			if err := unwind(); err != nil {
				return err
			}
			if err := m.eng.WriteRegister(frame, m.eng.ReturnRegister(), *opts.ForceReturn); err != nil {
				return fmt.Errorf("forcing return: %w", err)
			}
			fmt.Fprintf(&msg, "\nforced return: %#x", *opts.ForceReturn)
		}

		if opts.Backtrace {
			if err := unwind(); err != nil {
				return err
			}
			stack, err := m.eng.Backtrace(frame)
			if err != nil {
				return fmt.Errorf("capturing backtrace: %w", err)
			}
			for _, f := range stack {
				fmt.Fprintf(&msg, "\n\t%#x %s", f.PC, f.Function)
			}
		}

		if opts.RetVal != nil {
			if err := unwind(); err != nil {
				return err
			}
			value, err := m.eng.ReadRegister(frame, m.eng.ReturnRegister())
			if err != nil {
				return fmt.Errorf("reading return value: %w", err)
			}
			fmt.Fprintf(&msg, "\nreturned: %s", m.renderValue(*opts.RetVal, frame, value))
		}

		m.log.Info("%s", msg.String())

		for _, cmd := range opts.Commands {
			if _, err := m.eng.RunCommand(cmd); err != nil {
				m.log.Warn("monitor command %q failed: %v", cmd, err)
			}
		}

		if opts.Stop {
			m.log.Info("process remains stopped and focused on current thread")
			return nil
		}
		return m.eng.Continue()
	}
}

// renderValue formats one monitored value. Formatting failures are
// reported inline rather than aborting the hit.
func (m *Manager) renderValue(f Format, frame engine.Frame, value uint64) string {
	sym := m.catalog.Get(value)

	render := func() (string, error) {
		switch f.kind {
		case formatHex:
			return fmt.Sprintf("%#x", value), nil
		case formatString:
			if value == 0 {
				return "(null)", nil
			}
			return sym.PeekString()
		case formatDescription:
			return m.eng.EvaluateObject(frame, fmt.Sprintf("(id)CFCopyDescription((CFTypeRef)%#x)", value))
		case formatPrintObject:
			return m.eng.EvaluateObject(frame, fmt.Sprintf("(id)%#x", value))
		case formatStdString:
			addr, err := m.eng.Evaluate(frame, fmt.Sprintf("(const char *)((std::string *)%#x)->c_str()", value))
			if err != nil {
				return "", err
			}
			return m.catalog.Get(addr).PeekString()
		case formatCustom:
			return f.custom(sym)
		default:
			return fmt.Sprintf("%#x (unsupported format)", value), nil
		}
	}

	out, err := render()
	if err != nil {
		return fmt.Sprintf("%#x (format error: %v)", value, err)
	}
	return out
}

func sortedKeys(m map[string]Format) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
