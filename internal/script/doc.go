// Package script exposes a debug session to Lua.
//
// Scripts run in a single gopher-lua state with a `peek` module bound
// to the session: symbol lookup and catalog filters, breakpoint and
// watchpoint management, monitors, memory access and target control.
// Because an LState is not goroutine-safe, every entry into Lua,
// including hit callbacks arriving from the engine, goes through the
// state's mutex.
//
// Addresses cross the Go/Lua boundary as hex strings. Lua numbers are
// float64 and silently corrupt pointers above 2^53; the conversion
// helpers accept either form but always hand strings back.
package script
