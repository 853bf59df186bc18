// Package engine defines the boundary between peek and the native
// debugger engine controlling the inspected process.
//
// The engine is an external collaborator: target, process, thread and
// frame control, expression evaluation and memory access are already
// available primitives behind the Engine interface. Nothing in this
// module reimplements them.
//
// Concrete engine bindings live outside this repository and plug in
// the way database/sql drivers do: they call Register from an init
// function and are selected by name through Open.
package engine
