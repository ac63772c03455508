package devtools

import "errors"

// Sentinel errors returned by the devtools bridge.
var (
	// ErrUnknownModule is returned when a snapshot path resolves to no module.
	ErrUnknownModule = errors.New("devtools: unknown module path")

	// ErrPathNotFound is returned when a JSON path matches nothing inside a
	// snapshot.
	ErrPathNotFound = errors.New("devtools: json path not found")
)
