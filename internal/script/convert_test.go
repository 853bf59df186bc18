package script

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/peek/internal/breakpoint"
	"github.com/dshills/peek/internal/engine"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		name    string
		in      lua.LValue
		want    uint64
		wantErr bool
	}{
		{"number", lua.LNumber(4096), 0x1000, false},
		{"negative number", lua.LNumber(-1), 0, true},
		{"hex string", lua.LString("0x100001000"), 0x100001000, false},
		{"bare hex string", lua.LString("1f"), 0x1f, false},
		{"padded hex string", lua.LString(" 0x10 "), 0x10, false},
		{"garbage string", lua.LString("not-an-address"), 0, true},
		{"bool", lua.LTrue, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAddr(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAddr(%v) = %#x, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAddr(%v): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseAddr(%v) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAddr_NonSymbolUserData(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	ud := L.NewUserData()
	ud.Value = "not a symbol"
	if _, err := parseAddr(ud); err == nil {
		t.Fatal("parseAddr should reject non-symbol userdata")
	}
}

func TestParseWhere(t *testing.T) {
	tests := []struct {
		name string
		in   lua.LValue
		want breakpoint.Where
	}{
		{"number", lua.LNumber(0x100), breakpoint.WhereAddress(0x100)},
		{"hex string", lua.LString("0x100001000"), breakpoint.WhereAddress(0x100001000)},
		// Hex-looking text without the 0x prefix is a symbol name.
		{"hexish name", lua.LString("beef"), breakpoint.WhereName("beef")},
		{"name", lua.LString("malloc"), breakpoint.WhereName("malloc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhere(tt.in)
			if err != nil {
				t.Fatalf("parseWhere(%v): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseWhere(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := parseWhere(lua.LNumber(-5)); err == nil {
		t.Error("parseWhere should reject negative numbers")
	}
	if _, err := parseWhere(lua.LTrue); err == nil {
		t.Error("parseWhere should reject booleans")
	}
}

func TestFormatAddr(t *testing.T) {
	if got := formatAddr(0x100001000); got != "0x100001000" {
		t.Errorf("formatAddr = %q", got)
	}
	if got := formatAddr(0); got != "0x0" {
		t.Errorf("formatAddr(0) = %q", got)
	}
}

func TestMonitorOptionsFromTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	regs := L.NewTable()
	regs.RawSetString("x0", lua.LString("x"))
	regs.RawSetString("x1", lua.LString("s"))

	exprs := L.NewTable()
	exprs.RawSetString("self->len", lua.LString("x"))

	cmds := L.NewTable()
	cmds.Append(lua.LString("register read"))

	opts := L.NewTable()
	opts.RawSetString("condition", lua.LString("$x0 > 0"))
	opts.RawSetString("stop", lua.LTrue)
	opts.RawSetString("bt", lua.LTrue)
	opts.RawSetString("name", lua.LString("alloc_trace"))
	opts.RawSetString("regs", regs)
	opts.RawSetString("expr", exprs)
	opts.RawSetString("retval", lua.LString("x"))
	opts.RawSetString("force_return", lua.LString("0x0"))
	opts.RawSetString("cmds", cmds)

	got, err := monitorOptionsFromTable(opts, true)
	if err != nil {
		t.Fatalf("monitorOptionsFromTable: %v", err)
	}
	if got.Condition != "$x0 > 0" || !got.Stop || !got.Backtrace || got.Name != "alloc_trace" {
		t.Errorf("scalar options = %+v", got)
	}
	if !got.Override {
		t.Error("Override default should survive an options table")
	}
	if len(got.Regs) != 2 || got.Regs["x0"].String() != "x" || got.Regs["x1"].String() != "s" {
		t.Errorf("Regs = %v", got.Regs)
	}
	if len(got.Exprs) != 1 {
		t.Errorf("Exprs = %v", got.Exprs)
	}
	if got.RetVal == nil || got.RetVal.String() != "x" {
		t.Errorf("RetVal = %v", got.RetVal)
	}
	if got.ForceReturn == nil || *got.ForceReturn != 0 {
		t.Errorf("ForceReturn = %v", got.ForceReturn)
	}
	if len(got.Commands) != 1 || got.Commands[0] != "register read" {
		t.Errorf("Commands = %v", got.Commands)
	}
}

func TestMonitorOptionsFromTable_BadFormat(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	regs := L.NewTable()
	regs.RawSetString("x0", lua.LString("yaml"))
	opts := L.NewTable()
	opts.RawSetString("regs", regs)

	if _, err := monitorOptionsFromTable(opts, true); err == nil {
		t.Fatal("unknown format mnemonic should fail")
	}

	opts2 := L.NewTable()
	opts2.RawSetString("retval", lua.LNumber(1))
	if _, err := monitorOptionsFromTable(opts2, true); err == nil {
		t.Fatal("non-string retval should fail")
	}
}

func TestMonitorOptionsFromTable_OverrideDefault(t *testing.T) {
	opts, err := monitorOptionsFromTable(nil, false)
	if err != nil {
		t.Fatalf("monitorOptionsFromTable: %v", err)
	}
	if opts.Override {
		t.Error("configured override-off should carry into monitor defaults")
	}
}

func TestAddOptionsFromTable(t *testing.T) {
	if got := addOptionsFromTable(nil, breakpoint.DefaultAddOptions()); !got.Override {
		t.Error("nil table should give the override-on defaults")
	}

	base := breakpoint.DefaultAddOptions()
	base.Override = false
	if got := addOptionsFromTable(nil, base); got.Override {
		t.Error("nil table should keep the configured override policy")
	}

	L := lua.NewState()
	defer L.Close()
	tbl := L.NewTable()
	tbl.RawSetString("condition", lua.LString("x == 1"))
	tbl.RawSetString("guarded", lua.LTrue)
	tbl.RawSetString("override", lua.LFalse)
	tbl.RawSetString("label", lua.LString("entry"))

	got := addOptionsFromTable(tbl, breakpoint.DefaultAddOptions())
	if got.Condition != "x == 1" || !got.Guarded || got.Override || got.Label != "entry" {
		t.Errorf("options = %+v", got)
	}
}

func TestFrameTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	f := engine.Frame{PC: 0x100001000, ThreadID: 0x1d03, ThreadIndex: 2, Function: "malloc"}
	t1 := frameTable(L, f)

	if pc := t1.RawGetString("pc"); pc != lua.LString("0x100001000") {
		t.Errorf("pc = %v", pc)
	}
	if fn := t1.RawGetString("func"); fn != lua.LString("malloc") {
		t.Errorf("func = %v", fn)
	}
	if idx := t1.RawGetString("thread_index"); idx != lua.LNumber(2) {
		t.Errorf("thread_index = %v", idx)
	}
}
