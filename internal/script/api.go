package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/peek/internal/app"
	"github.com/dshills/peek/internal/breakpoint"
	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/symbol"
	"github.com/dshills/peek/internal/watchpoint"
)

// Metatable names for the exported userdata types.
const (
	symbolTypeName     = "peek.symbol"
	catalogTypeName    = "peek.catalog"
	breakpointTypeName = "peek.breakpoint"
	watchpointTypeName = "peek.watchpoint"
)

// API binds a debug session into a Lua state as the `peek` module.
type API struct {
	session *app.Session
	state   *State
}

// NewAPI creates the binding. Install must be called before scripts
// run.
func NewAPI(session *app.Session, state *State) *API {
	return &API{session: session, state: state}
}

// Install registers the userdata metatables and the peek module.
func (a *API) Install() {
	L := a.state.LuaState()

	a.registerSymbolType(L)
	a.registerCatalogType(L)
	a.registerBreakpointType(L)
	a.registerWatchpointType(L)

	a.state.RegisterModule("peek", map[string]lua.LGFunction{
		"symbol":       a.luaSymbol,
		"address":      a.luaAddress,
		"lookup":       a.luaLookup,
		"symbols":      a.luaSymbols,
		"refresh":      a.luaRefresh,
		"bp":           a.luaBreakpoint,
		"monitor":      a.luaMonitor,
		"bp_clear":     a.luaBreakpointClear,
		"bp_show":      a.luaBreakpointShow,
		"wp":           a.luaWatchpoint,
		"wp_clear":     a.luaWatchpointClear,
		"wp_show":      a.luaWatchpointShow,
		"cont":         a.luaContinue,
		"stop":         a.luaStop,
		"step_into":    a.luaStepInto,
		"step_out":     a.luaStepOut,
		"frame":        a.luaFrame,
		"bt":           a.luaBacktrace,
		"reg":          a.luaReadRegister,
		"setreg":       a.luaWriteRegister,
		"eval":         a.luaEvaluate,
		"po":           a.luaEvaluateObject,
		"cmd":          a.luaCommand,
		"save_symbols": a.luaSaveSymbols,
		"load_symbols": a.luaLoadSymbols,
		"inject":       a.luaInject,
		"log":          a.luaLog,
	})
}

// pushErr pushes the (nil, message) failure pair.
func pushErr(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

// pushOK pushes the boolean success value for side-effect calls.
func pushOK(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func wrapUserData(L *lua.LState, value any, typeName string) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = value
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))
	return ud
}

func (a *API) wrapSymbol(L *lua.LState, sym *symbol.Symbol) *lua.LUserData {
	return wrapUserData(L, sym, symbolTypeName)
}

func (a *API) wrapCatalog(L *lua.LState, c *symbol.Catalog) *lua.LUserData {
	return wrapUserData(L, c, catalogTypeName)
}

func (a *API) wrapBreakpoint(L *lua.LState, bp *breakpoint.Breakpoint) *lua.LUserData {
	return wrapUserData(L, bp, breakpointTypeName)
}

func (a *API) wrapWatchpoint(L *lua.LState, wp *watchpoint.Watchpoint) *lua.LUserData {
	return wrapUserData(L, wp, watchpointTypeName)
}

func checkSymbol(L *lua.LState, n int) *symbol.Symbol {
	ud := L.CheckUserData(n)
	if sym, ok := ud.Value.(*symbol.Symbol); ok {
		return sym
	}
	L.ArgError(n, "symbol expected")
	return nil
}

func checkCatalog(L *lua.LState, n int) *symbol.Catalog {
	ud := L.CheckUserData(n)
	if c, ok := ud.Value.(*symbol.Catalog); ok {
		return c
	}
	L.ArgError(n, "symbol catalog expected")
	return nil
}

func checkBreakpoint(L *lua.LState, n int) *breakpoint.Breakpoint {
	ud := L.CheckUserData(n)
	if bp, ok := ud.Value.(*breakpoint.Breakpoint); ok {
		return bp
	}
	L.ArgError(n, "breakpoint expected")
	return nil
}

func checkWatchpoint(L *lua.LState, n int) *watchpoint.Watchpoint {
	ud := L.CheckUserData(n)
	if wp, ok := ud.Value.(*watchpoint.Watchpoint); ok {
		return wp
	}
	L.ArgError(n, "watchpoint expected")
	return nil
}

// luaCallback wraps a Lua function as a breakpoint callback. The
// state lock is taken for the whole invocation so the callback cannot
// interleave with interactive input.
func (a *API) luaCallback(fn *lua.LFunction) breakpoint.Callback {
	return func(hit breakpoint.Hit) error {
		return a.state.Do(func(L *lua.LState) error {
			L.Push(fn)
			L.Push(a.wrapBreakpoint(L, hit.Breakpoint))
			L.Push(frameTable(L, hit.Frame))
			return L.PCall(2, 0, nil)
		})
	}
}

func (a *API) luaWatchpointCallback(fn *lua.LFunction) watchpoint.Callback {
	return func(hit watchpoint.Hit) error {
		return a.state.Do(func(L *lua.LState) error {
			L.Push(fn)
			L.Push(a.wrapWatchpoint(L, hit.Watchpoint))
			L.Push(frameTable(L, hit.Frame))
			L.Push(lua.LString(hit.Access.String()))
			return L.PCall(3, 0, nil)
		})
	}
}

// --- module functions ---

func (a *API) luaSymbol(L *lua.LState) int {
	name := L.CheckString(1)
	sym, err := a.session.Symbols().IndexName(name)
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapSymbol(L, sym))
	return 1
}

func (a *API) luaAddress(L *lua.LState) int {
	addr, err := parseAddr(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(a.wrapSymbol(L, a.session.Symbols().Get(addr)))
	return 1
}

func (a *API) luaLookup(L *lua.LState) int {
	sym, err := a.session.Symbols().Lookup(L.CheckString(1))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapSymbol(L, sym))
	return 1
}

func (a *API) luaSymbols(L *lua.LState) int {
	L.Push(a.wrapCatalog(L, a.session.Symbols()))
	return 1
}

func (a *API) luaRefresh(L *lua.LState) int {
	filter := L.OptString(1, "")
	err := a.session.Symbols().ForceRefresh(symbol.RefreshOptions{Filter: filter})
	return pushOK(L, err)
}

func (a *API) luaBreakpoint(L *lua.LState) int {
	where, err := parseWhere(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}

	var optsTable *lua.LTable
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		optsTable = L.CheckTable(2)
	}
	opts := addOptionsFromTable(optsTable, a.session.BreakpointDefaults())

	var cb breakpoint.Callback
	if optsTable != nil {
		if fn, ok := optsTable.RawGetString("callback").(*lua.LFunction); ok {
			cb = a.luaCallback(fn)
		}
	}

	bp, err := a.session.Breakpoints().Add(where, cb, opts)
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapBreakpoint(L, bp))
	return 1
}

func (a *API) luaMonitor(L *lua.LState) int {
	where, err := parseWhere(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}

	var optsTable *lua.LTable
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		optsTable = L.CheckTable(2)
	}
	opts, err := monitorOptionsFromTable(optsTable, a.session.BreakpointDefaults().Override)
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	bp, err := a.session.Breakpoints().AddMonitor(where, opts)
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapBreakpoint(L, bp))
	return 1
}

func (a *API) luaBreakpointClear(L *lua.LState) int {
	force := L.OptBool(1, false)
	return pushOK(L, a.session.Breakpoints().Clear(force))
}

func (a *API) luaBreakpointShow(L *lua.LState) int {
	a.session.Breakpoints().Show()
	return 0
}

func (a *API) luaWatchpoint(L *lua.LState) int {
	addr, err := parseAddr(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}

	opts := watchpoint.DefaultAddOptions()
	var cb watchpoint.Callback
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		t := L.CheckTable(2)
		if v, ok := t.RawGetString("size").(lua.LNumber); ok {
			opts.Size = int(v)
		}
		opts.Read = tableBool(t, "read", opts.Read)
		opts.Write = tableBool(t, "write", opts.Write)
		opts.Condition = tableString(t, "condition")
		if fn, ok := t.RawGetString("callback").(*lua.LFunction); ok {
			cb = a.luaWatchpointCallback(fn)
		}
	}

	wp, err := a.session.Watchpoints().Add(addr, cb, &opts)
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapWatchpoint(L, wp))
	return 1
}

func (a *API) luaWatchpointClear(L *lua.LState) int {
	return pushOK(L, a.session.Watchpoints().Clear())
}

func (a *API) luaWatchpointShow(L *lua.LState) int {
	a.session.Watchpoints().Show()
	return 0
}

func (a *API) luaContinue(L *lua.LState) int {
	return pushOK(L, a.session.Continue())
}

func (a *API) luaStop(L *lua.LState) int {
	return pushOK(L, a.session.Stop())
}

func (a *API) luaStepInto(L *lua.LState) int {
	return pushOK(L, a.session.StepInto())
}

func (a *API) luaStepOut(L *lua.LState) int {
	return pushOK(L, a.session.StepOut())
}

func (a *API) luaFrame(L *lua.LState) int {
	L.Push(frameTable(L, a.session.CurrentFrame()))
	return 1
}

func (a *API) luaBacktrace(L *lua.LState) int {
	stack, err := a.session.Engine().Backtrace(a.session.CurrentFrame())
	if err != nil {
		return pushErr(L, err)
	}
	t := L.NewTable()
	for i, f := range stack {
		t.RawSetInt(i+1, frameTable(L, f))
	}
	L.Push(t)
	return 1
}

func (a *API) luaReadRegister(L *lua.LState) int {
	name := L.CheckString(1)
	value, err := a.session.Engine().ReadRegister(a.session.CurrentFrame(), name)
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(formatAddr(value)))
	return 1
}

func (a *API) luaWriteRegister(L *lua.LState) int {
	name := L.CheckString(1)
	value, err := parseAddr(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	return pushOK(L, a.session.Engine().WriteRegister(a.session.CurrentFrame(), name, value))
}

func (a *API) luaEvaluate(L *lua.LState) int {
	value, err := a.session.Engine().Evaluate(a.session.CurrentFrame(), L.CheckString(1))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(formatAddr(value)))
	return 1
}

func (a *API) luaEvaluateObject(L *lua.LState) int {
	out, err := a.session.Engine().EvaluateObject(a.session.CurrentFrame(), L.CheckString(1))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(out))
	return 1
}

func (a *API) luaCommand(L *lua.LState) int {
	out, err := a.session.Engine().RunCommand(L.CheckString(1))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(out))
	return 1
}

func (a *API) luaSaveSymbols(L *lua.LState) int {
	return pushOK(L, a.session.SaveSymbols())
}

func (a *API) luaLoadSymbols(L *lua.LState) int {
	return pushOK(L, a.session.LoadSymbols())
}

func (a *API) luaInject(L *lua.LState) int {
	view, err := a.session.Inject(L.CheckString(1))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapCatalog(L, view))
	return 1
}

func (a *API) luaLog(L *lua.LState) int {
	a.session.Logger().Info("%s", L.CheckString(1))
	return 0
}

// --- symbol userdata ---

func (a *API) registerSymbolType(L *lua.LState) {
	mt := L.NewTypeMetatable(symbolTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"name":          a.symName,
		"address":       a.symAddress,
		"module":        a.symModule,
		"category":      a.symCategory,
		"file_address":  a.symFileAddress,
		"item_size":     a.symItemSize,
		"set_item_size": a.symSetItemSize,
		"add":           a.symAdd,
		"sub":           a.symSub,
		"peek":          a.symPeek,
		"poke":          a.symPoke,
		"peek_str":      a.symPeekString,
		"get":           a.symIndex,
		"set":           a.symSetIndex,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(a.symToString))
}

func (a *API) symName(L *lua.LState) int {
	L.Push(lua.LString(checkSymbol(L, 1).Name()))
	return 1
}

func (a *API) symAddress(L *lua.LState) int {
	L.Push(lua.LString(formatAddr(checkSymbol(L, 1).Address())))
	return 1
}

func (a *API) symModule(L *lua.LState) int {
	L.Push(lua.LString(checkSymbol(L, 1).Module()))
	return 1
}

func (a *API) symCategory(L *lua.LState) int {
	L.Push(lua.LString(checkSymbol(L, 1).Category().String()))
	return 1
}

func (a *API) symFileAddress(L *lua.LState) int {
	addr, err := checkSymbol(L, 1).FileAddress()
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(formatAddr(addr)))
	return 1
}

func (a *API) symItemSize(L *lua.LState) int {
	L.Push(lua.LNumber(checkSymbol(L, 1).ItemSize()))
	return 1
}

func (a *API) symSetItemSize(L *lua.LState) int {
	return pushOK(L, checkSymbol(L, 1).SetItemSize(L.CheckInt(2)))
}

func (a *API) symAdd(L *lua.LState) int {
	L.Push(a.wrapSymbol(L, checkSymbol(L, 1).Add(L.CheckInt64(2))))
	return 1
}

func (a *API) symSub(L *lua.LState) int {
	L.Push(a.wrapSymbol(L, checkSymbol(L, 1).Sub(L.CheckInt64(2))))
	return 1
}

func (a *API) symPeek(L *lua.LState) int {
	data, err := checkSymbol(L, 1).Peek(L.CheckInt(2))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(data))
	return 1
}

func (a *API) symPoke(L *lua.LState) int {
	n, err := checkSymbol(L, 1).Poke([]byte(L.CheckString(2)))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (a *API) symPeekString(L *lua.LState) int {
	s, err := checkSymbol(L, 1).PeekString()
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(lua.LString(s))
	return 1
}

func (a *API) symIndex(L *lua.LState) int {
	sym, err := checkSymbol(L, 1).Index(L.CheckInt64(2))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapSymbol(L, sym))
	return 1
}

func (a *API) symSetIndex(L *lua.LState) int {
	value, err := parseAddr(L.CheckAny(3))
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}
	return pushOK(L, checkSymbol(L, 1).SetIndex(L.CheckInt64(2), value))
}

func (a *API) symToString(L *lua.LState) int {
	L.Push(lua.LString(checkSymbol(L, 1).String()))
	return 1
}

// --- catalog userdata ---

func (a *API) registerCatalogType(L *lua.LState) {
	mt := L.NewTypeMetatable(catalogTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"len":         a.catLen,
		"all":         a.catAll,
		"startswith":  a.catStartsWith,
		"endswith":    a.catEndsWith,
		"find":        a.catContains,
		"by_module":   a.catByModule,
		"by_category": a.catByCategory,
		"union":       a.catUnion,
		"diff":        a.catDifference,
		"get":         a.catGet,
		"add":         a.catAdd,
		"remove":      a.catRemove,
		"contains":    a.catContainsSym,
	}))
}

func (a *API) catLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkCatalog(L, 1).Len()))
	return 1
}

func (a *API) catAll(L *lua.LState) int {
	syms, err := checkCatalog(L, 1).All()
	if err != nil {
		return pushErr(L, err)
	}
	t := L.NewTable()
	for i, sym := range syms {
		t.RawSetInt(i+1, a.wrapSymbol(L, sym))
	}
	L.Push(t)
	return 1
}

func (a *API) catFiltered(L *lua.LState, view *symbol.Catalog, err error) int {
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapCatalog(L, view))
	return 1
}

func (a *API) catStartsWith(L *lua.LState) int {
	c := checkCatalog(L, 1)
	view, err := c.NameStartsWith(L.CheckString(2), L.OptBool(3, true))
	return a.catFiltered(L, view, err)
}

func (a *API) catEndsWith(L *lua.LState) int {
	c := checkCatalog(L, 1)
	view, err := c.NameEndsWith(L.CheckString(2), L.OptBool(3, true))
	return a.catFiltered(L, view, err)
}

func (a *API) catContains(L *lua.LState) int {
	c := checkCatalog(L, 1)
	view, err := c.NameContains(L.CheckString(2), L.OptBool(3, true))
	return a.catFiltered(L, view, err)
}

func (a *API) catByModule(L *lua.LState) int {
	c := checkCatalog(L, 1)
	view, err := c.ByModule(L.CheckString(2), L.OptBool(3, true))
	return a.catFiltered(L, view, err)
}

func (a *API) catByCategory(L *lua.LState) int {
	c := checkCatalog(L, 1)
	view, err := c.ByCategory(engine.ParseCategory(L.CheckString(2)))
	return a.catFiltered(L, view, err)
}

func (a *API) catUnion(L *lua.LState) int {
	view, err := checkCatalog(L, 1).Union(checkCatalog(L, 2))
	return a.catFiltered(L, view, err)
}

func (a *API) catDifference(L *lua.LState) int {
	view, err := checkCatalog(L, 1).Difference(checkCatalog(L, 2))
	return a.catFiltered(L, view, err)
}

func (a *API) catGet(L *lua.LState) int {
	sym, err := checkCatalog(L, 1).Lookup(L.CheckString(2))
	if err != nil {
		return pushErr(L, err)
	}
	L.Push(a.wrapSymbol(L, sym))
	return 1
}

// catAdd registers an address in the catalog, named when a second
// argument is given.
func (a *API) catAdd(L *lua.LState) int {
	c := checkCatalog(L, 1)
	addr, err := parseAddr(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	if L.GetTop() >= 3 {
		sym, err := c.AddNamed(addr, L.CheckString(3), engine.CategoryUnknown)
		if err != nil {
			return pushErr(L, err)
		}
		L.Push(a.wrapSymbol(L, sym))
		return 1
	}
	L.Push(a.wrapSymbol(L, c.AddAddress(addr)))
	return 1
}

func (a *API) catRemove(L *lua.LState) int {
	return pushOK(L, checkCatalog(L, 1).Remove(checkSymbol(L, 2)))
}

func (a *API) catContainsSym(L *lua.LState) int {
	L.Push(lua.LBool(checkCatalog(L, 1).Contains(checkSymbol(L, 2))))
	return 1
}

// --- breakpoint userdata ---

func (a *API) registerBreakpointType(L *lua.LState) {
	mt := L.NewTypeMetatable(breakpointTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"id":            a.bpID,
		"remove":        a.bpRemove,
		"enable":        a.bpEnable,
		"set_condition": a.bpSetCondition,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(a.bpToString))
}

func (a *API) bpID(L *lua.LState) int {
	L.Push(lua.LNumber(checkBreakpoint(L, 1).ID()))
	return 1
}

func (a *API) bpRemove(L *lua.LState) int {
	return pushOK(L, checkBreakpoint(L, 1).Remove(L.OptBool(2, false)))
}

func (a *API) bpEnable(L *lua.LState) int {
	return pushOK(L, checkBreakpoint(L, 1).SetEnabled(L.OptBool(2, true)))
}

func (a *API) bpSetCondition(L *lua.LState) int {
	return pushOK(L, checkBreakpoint(L, 1).SetCondition(L.CheckString(2)))
}

func (a *API) bpToString(L *lua.LState) int {
	L.Push(lua.LString(checkBreakpoint(L, 1).String()))
	return 1
}

// --- watchpoint userdata ---

func (a *API) registerWatchpointType(L *lua.LState) {
	mt := L.NewTypeMetatable(watchpointTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"id":            a.wpID,
		"remove":        a.wpRemove,
		"set_condition": a.wpSetCondition,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(a.wpToString))
}

func (a *API) wpID(L *lua.LState) int {
	L.Push(lua.LNumber(checkWatchpoint(L, 1).ID()))
	return 1
}

func (a *API) wpRemove(L *lua.LState) int {
	return pushOK(L, checkWatchpoint(L, 1).Remove())
}

func (a *API) wpSetCondition(L *lua.LState) int {
	return pushOK(L, checkWatchpoint(L, 1).SetCondition(L.CheckString(2)))
}

func (a *API) wpToString(L *lua.LState) int {
	L.Push(lua.LString(checkWatchpoint(L, 1).String()))
	return 1
}
