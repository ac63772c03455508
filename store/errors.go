package store

import "errors"

// Store errors.
var (
	// ErrDuplicateGetter indicates two modules registered a getter under the
	// same namespaced key.
	ErrDuplicateGetter = errors.New("store: duplicate getter key")

	// ErrActionPanic indicates an action handler panicked; the dispatch
	// rejects with this error wrapping the panic value.
	ErrActionPanic = errors.New("store: action handler panic")

	// ErrRegisterRoot indicates an attempt to register a module at the root
	// path.
	ErrRegisterRoot = errors.New("store: cannot register the root module, use New")
)
