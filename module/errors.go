package module

import "errors"

// Module tree errors.
var (
	// ErrParentMissing indicates a registration path whose parent does not
	// exist in the tree.
	ErrParentMissing = errors.New("module: parent module is missing")

	// ErrNilConfig indicates a nil configuration where one is required.
	ErrNilConfig = errors.New("module: configuration is nil")
)
