package model

import "errors"

// Sentinel error kinds shared across layers.
var (
	// ErrInsufficientData means the history cannot support the requested
	// operation: no rows, no qualifying group, or no constructible window.
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownActivity  = errors.New("unknown activity")
)
