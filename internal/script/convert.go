package script

import (
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/peek/internal/breakpoint"
	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/symbol"
)

// formatAddr renders an address for Lua.
func formatAddr(addr uint64) string {
	return fmt.Sprintf("%#x", addr)
}

// parseAddr accepts a Lua number, a hex string or a symbol userdata
// and returns the address it names.
func parseAddr(lv lua.LValue) (uint64, error) {
	switch v := lv.(type) {
	case lua.LNumber:
		if v < 0 {
			return 0, fmt.Errorf("negative address %v", v)
		}
		return uint64(v), nil
	case lua.LString:
		s := strings.TrimPrefix(strings.TrimSpace(string(v)), "0x")
		addr, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("bad address %q", string(v))
		}
		return addr, nil
	case *lua.LUserData:
		if sym, ok := v.Value.(*symbol.Symbol); ok {
			return sym.Address(), nil
		}
		return 0, fmt.Errorf("userdata is not a symbol")
	default:
		return 0, fmt.Errorf("cannot use %s as an address", lv.Type())
	}
}

// parseWhere maps a Lua breakpoint location to a Where specifier:
// numbers and hex strings become addresses, other strings become
// names, symbol userdata binds the symbol address.
func parseWhere(lv lua.LValue) (breakpoint.Where, error) {
	switch v := lv.(type) {
	case lua.LNumber:
		if v < 0 {
			return breakpoint.Where{}, fmt.Errorf("negative address %v", v)
		}
		return breakpoint.WhereAddress(uint64(v)), nil
	case lua.LString:
		s := string(v)
		if addr, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64); err == nil && strings.HasPrefix(s, "0x") {
			return breakpoint.WhereAddress(addr), nil
		}
		return breakpoint.WhereName(s), nil
	case *lua.LUserData:
		if sym, ok := v.Value.(*symbol.Symbol); ok {
			return breakpoint.WhereSymbol(sym), nil
		}
		return breakpoint.Where{}, fmt.Errorf("userdata is not a symbol")
	default:
		return breakpoint.Where{}, fmt.Errorf("cannot use %s as a location", lv.Type())
	}
}

// tableString fetches an optional string field.
func tableString(t *lua.LTable, key string) string {
	if v, ok := t.RawGetString(key).(lua.LString); ok {
		return string(v)
	}
	return ""
}

// tableBool fetches an optional bool field with a default.
func tableBool(t *lua.LTable, key string, def bool) bool {
	if v, ok := t.RawGetString(key).(lua.LBool); ok {
		return bool(v)
	}
	return def
}

// addOptionsFromTable builds breakpoint options from a Lua table,
// starting from the session's configured defaults. A nil table yields
// those defaults unchanged.
func addOptionsFromTable(t *lua.LTable, base breakpoint.AddOptions) *breakpoint.AddOptions {
	opts := base
	if t == nil {
		return &opts
	}
	opts.Condition = tableString(t, "condition")
	opts.Guarded = tableBool(t, "guarded", false)
	opts.Override = tableBool(t, "override", opts.Override)
	opts.Description = tableString(t, "description")
	opts.Label = tableString(t, "label")
	return &opts
}

// formatsFromTable converts {x0 = "x", x1 = "po"} into a format map.
func formatsFromTable(t *lua.LTable) (map[string]breakpoint.Format, error) {
	out := make(map[string]breakpoint.Format)
	var convErr error
	t.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("format table keys must be strings, got %s", k.Type())
			return
		}
		spec, ok := v.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("format for %q must be a string, got %s", string(key), v.Type())
			return
		}
		f, err := breakpoint.ParseFormat(string(spec))
		if err != nil {
			convErr = err
			return
		}
		out[string(key)] = f
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// monitorOptionsFromTable builds monitor options from a Lua table,
// starting from the session's configured override policy.
func monitorOptionsFromTable(t *lua.LTable, overrideDefault bool) (breakpoint.MonitorOptions, error) {
	opts := breakpoint.DefaultMonitorOptions()
	opts.Override = overrideDefault
	if t == nil {
		return opts, nil
	}

	opts.Condition = tableString(t, "condition")
	opts.Guarded = tableBool(t, "guarded", false)
	opts.Override = tableBool(t, "override", opts.Override)
	opts.Description = tableString(t, "description")
	opts.Label = tableString(t, "label")
	opts.Stop = tableBool(t, "stop", false)
	opts.Backtrace = tableBool(t, "bt", false)
	opts.Name = tableString(t, "name")

	if regs, ok := t.RawGetString("regs").(*lua.LTable); ok {
		m, err := formatsFromTable(regs)
		if err != nil {
			return opts, fmt.Errorf("regs: %w", err)
		}
		opts.Regs = m
	}
	if exprs, ok := t.RawGetString("expr").(*lua.LTable); ok {
		m, err := formatsFromTable(exprs)
		if err != nil {
			return opts, fmt.Errorf("expr: %w", err)
		}
		opts.Exprs = m
	}
	if rv := t.RawGetString("retval"); rv != lua.LNil {
		spec, ok := rv.(lua.LString)
		if !ok {
			return opts, fmt.Errorf("retval must be a format string, got %s", rv.Type())
		}
		f, err := breakpoint.ParseFormat(string(spec))
		if err != nil {
			return opts, fmt.Errorf("retval: %w", err)
		}
		opts.RetVal = &f
	}
	if fr := t.RawGetString("force_return"); fr != lua.LNil {
		value, err := parseAddr(fr)
		if err != nil {
			return opts, fmt.Errorf("force_return: %w", err)
		}
		opts.ForceReturn = &value
	}
	if cmds, ok := t.RawGetString("cmds").(*lua.LTable); ok {
		for i := 1; i <= cmds.Len(); i++ {
			cmd, ok := cmds.RawGetInt(i).(lua.LString)
			if !ok {
				return opts, fmt.Errorf("cmds entries must be strings")
			}
			opts.Commands = append(opts.Commands, string(cmd))
		}
	}
	return opts, nil
}

// frameTable renders a frame for Lua callbacks.
func frameTable(L *lua.LState, f engine.Frame) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("pc", lua.LString(formatAddr(f.PC)))
	t.RawSetString("thread_id", lua.LNumber(f.ThreadID))
	t.RawSetString("thread_index", lua.LNumber(f.ThreadIndex))
	t.RawSetString("func", lua.LString(f.Function))
	return t
}
