// Package luaplugin runs sandboxed Lua scripts as store plugins.
//
// A script may define two globals:
//
//	function onmutation(type, payload, state) ... end
//	function onaction(kind, type, payload) ... end
//
// The host subscribes to the store and invokes them with values bridged to
// Lua tables. Scripts get a commit(type, payload) global so they can write
// back through the store's sanctioned path.
//
// # Architecture
//
// gopher-lua's LState is not goroutine-safe, so the host serializes every
// script invocation. A commit issued from inside a handler re-enters the
// host synchronously; those invocations are queued and drained after the
// current call returns instead of deadlocking.
package luaplugin
