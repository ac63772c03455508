package luaplugin

import "errors"

var (
	// ErrClosed is returned when loading into a closed host.
	ErrClosed = errors.New("luaplugin: host is closed")

	// ErrNoHandlers is returned when a loaded script defines neither
	// onmutation nor onaction.
	ErrNoHandlers = errors.New("luaplugin: script defines no handler globals")

	// ErrBusy is returned when Load is called while a handler is running,
	// which would mean loading code from inside a script.
	ErrBusy = errors.New("luaplugin: host is executing a handler")
)
