package breakpoint

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/engine/enginetest"
	"github.com/dshills/peek/internal/symbol"
)

// newMonitorManager plants one resolvable function and a caller frame
// for unwind-dependent options.
func newMonitorManager(t *testing.T) (*enginetest.Fake, *Manager, *recordLogger) {
	t.Helper()
	eng := enginetest.New()
	eng.AddModule("app", 0x100400000,
		enginetest.Sym("handle_request", 0x100401000, "app", engine.CategoryCode))
	eng.Caller = engine.Frame{PC: 0x100400500, Function: "dispatch_loop", ThreadID: 0x1d03, ThreadIndex: 2}
	log := &recordLogger{}
	mgr := NewManager(eng, symbol.NewCatalog(eng), log, nil)
	return eng, mgr, log
}

func hitFrame() engine.Frame {
	return engine.Frame{PC: 0x100401000, Function: "handle_request", ThreadID: 0x1d03, ThreadIndex: 2}
}

func fireMonitor(t *testing.T, mgr *Manager, bp *Breakpoint) {
	t.Helper()
	if err := mgr.DispatchBreakpoint(bp.ID(), hitFrame()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func lastInfo(t *testing.T, log *recordLogger) string {
	t.Helper()
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.info) == 0 {
		t.Fatal("no log output")
	}
	return log.info[len(log.info)-1]
}

func TestAddMonitor_HeaderAndResume(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)

	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), DefaultMonitorOptions())
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	rec, _ := eng.Breakpoint(bp.ID())
	if !rec.Registered {
		t.Fatal("monitor callback not registered with the engine")
	}

	fireMonitor(t, mgr, bp)

	line := lastInfo(t, log)
	want := "#1 0x100401000 handle_request - thread #2:0x1d03"
	if line != want {
		t.Errorf("log line = %q, want %q", line, want)
	}
	if eng.Continued != 1 {
		t.Errorf("Continued = %d, want 1", eng.Continued)
	}
	if eng.StepOutCount != 0 {
		t.Errorf("StepOutCount = %d, want 0 with no unwind options", eng.StepOutCount)
	}
}

func TestMonitor_NameFallsBackToPC(t *testing.T) {
	_, mgr, log := newMonitorManager(t)

	// No planted symbol at this address, so the hit PC is the name.
	bp, err := mgr.AddMonitor(WhereAddress(0x100409999), DefaultMonitorOptions())
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	frame := engine.Frame{PC: 0x100409999, ThreadID: 0x1d03, ThreadIndex: 2}
	if err := mgr.DispatchBreakpoint(bp.ID(), frame); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if line := lastInfo(t, log); !strings.Contains(line, "0x100409999 0x100409999") {
		t.Errorf("log line = %q, want PC as name", line)
	}

	_, mgr2, log2 := newMonitorManager(t)
	opts := DefaultMonitorOptions()
	opts.Name = "req_entry"
	bp2, err := mgr2.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr2, bp2)
	if line := lastInfo(t, log2); !strings.Contains(line, " req_entry - thread") {
		t.Errorf("log line = %q, want overridden name", line)
	}
}

func TestMonitor_RegistersAndExpressions(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)
	eng.Registers["x0"] = 0xdead
	eng.Registers["x1"] = 0x100500000
	eng.SetMemory(0x100500000, []byte("hello\x00"))
	eng.ExprResults["self->count"] = 7

	opts := DefaultMonitorOptions()
	opts.Regs = map[string]Format{"x0": FormatHex, "x1": FormatString, "x9": FormatHex}
	opts.Exprs = map[string]Format{"self->count": FormatHex}
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	line := lastInfo(t, log)
	for _, want := range []string{
		"\nregs:",
		"\n\tx0 = 0xdead",
		"\n\tx1 = hello",
		"\n\tx9 = (error:",
		"\nexpr:",
		"\n\tself->count = 0x7",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q:\n%s", want, line)
		}
	}
}

func TestMonitor_UnwindsAtMostOnce(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)
	eng.CallStack = []engine.Frame{
		{PC: 0x100400500, Function: "dispatch_loop"},
		{PC: 0x100400100, Function: "main"},
	}

	forced := uint64(0x7f)
	retFmt := FormatHex
	opts := DefaultMonitorOptions()
	opts.ForceReturn = &forced
	opts.Backtrace = true
	opts.RetVal = &retFmt

	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	if eng.StepOutCount != 1 {
		t.Errorf("StepOutCount = %d, want exactly 1", eng.StepOutCount)
	}
	if eng.Registers["x0"] != forced {
		t.Errorf("x0 = %#x, want forced %#x", eng.Registers["x0"], forced)
	}

	line := lastInfo(t, log)
	for _, want := range []string{
		"\nforced return: 0x7f",
		"\n\t0x100400500 dispatch_loop",
		"\n\t0x100400100 main",
		"\nreturned: 0x7f",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q:\n%s", want, line)
		}
	}
}

func TestMonitor_RetValReadsReturnRegister(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)
	eng.Registers["x0"] = 0xc0ffee

	retFmt := FormatHex
	opts := DefaultMonitorOptions()
	opts.RetVal = &retFmt
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	if eng.StepOutCount != 1 {
		t.Errorf("StepOutCount = %d, want 1", eng.StepOutCount)
	}
	if line := lastInfo(t, log); !strings.Contains(line, "\nreturned: 0xc0ffee") {
		t.Errorf("log line = %q, want return value", line)
	}
}

func TestMonitor_StopKeepsTargetHalted(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)

	opts := DefaultMonitorOptions()
	opts.Stop = true
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	if eng.Continued != 0 {
		t.Errorf("Continued = %d, want 0 with Stop set", eng.Continued)
	}
	if !log.infoContains("process remains stopped and focused on current thread") {
		t.Errorf("missing stop notice, got %v", log.info)
	}
}

func TestMonitor_RunsAttachedCommands(t *testing.T) {
	eng, mgr, _ := newMonitorManager(t)

	opts := DefaultMonitorOptions()
	opts.Commands = []string{"register read", "memory read $sp"}
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	if len(eng.Commands) != 2 || eng.Commands[0] != "register read" || eng.Commands[1] != "memory read $sp" {
		t.Errorf("Commands = %v", eng.Commands)
	}
}

func TestRenderValue_ObjectFormats(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)
	eng.Registers["x0"] = 0x100600000
	eng.Registers["x1"] = 0x100600000
	eng.Registers["x2"] = 0x100700000
	eng.ObjectResults["(id)CFCopyDescription((CFTypeRef)0x100600000)"] = "<CFString \"cfg\">"
	eng.ObjectResults["(id)0x100600000"] = "<Widget: 0x100600000>"
	eng.ExprResults["(const char *)((std::string *)0x100700000)->c_str()"] = 0x100700010
	eng.SetMemory(0x100700010, []byte("std-text\x00"))

	opts := DefaultMonitorOptions()
	opts.Regs = map[string]Format{
		"x0": FormatDescription,
		"x1": FormatPrintObject,
		"x2": FormatStdString,
	}
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	line := lastInfo(t, log)
	for _, want := range []string{
		"\n\tx0 = <CFString \"cfg\">",
		"\n\tx1 = <Widget: 0x100600000>",
		"\n\tx2 = std-text",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q:\n%s", want, line)
		}
	}
}

func TestRenderValue_NullStringAndCustom(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)
	eng.Registers["x0"] = 0
	eng.Registers["x1"] = 0x100600000

	opts := DefaultMonitorOptions()
	opts.Regs = map[string]Format{
		"x0": FormatString,
		"x1": CustomFormat(func(value *symbol.Symbol) (string, error) {
			return "custom:" + value.String(), nil
		}),
	}
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	line := lastInfo(t, log)
	if !strings.Contains(line, "\n\tx0 = (null)") {
		t.Errorf("log line missing null rendering:\n%s", line)
	}
	if !strings.Contains(line, "\n\tx1 = custom:") {
		t.Errorf("log line missing custom rendering:\n%s", line)
	}
}

func TestRenderValue_ErrorIsInline(t *testing.T) {
	eng, mgr, log := newMonitorManager(t)
	eng.Registers["x0"] = 0x100600000

	opts := DefaultMonitorOptions()
	opts.Regs = map[string]Format{
		"x0": CustomFormat(func(*symbol.Symbol) (string, error) {
			return "", errors.New("boom")
		}),
	}
	bp, err := mgr.AddMonitor(WhereAddress(0x100401000), opts)
	if err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	fireMonitor(t, mgr, bp)

	if line := lastInfo(t, log); !strings.Contains(line, "0x100600000 (format error: boom)") {
		t.Errorf("log line = %q, want inline format error", line)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"x", FormatHex},
		{"s", FormatString},
		{"cf", FormatDescription},
		{"po", FormatPrintObject},
		{"std::string", FormatStdString},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", tt.in, err)
			continue
		}
		if got.String() != tt.want.String() {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseFormat("yaml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(unknown) err = %v, want ErrUnknownFormat", err)
	}
}
