package testevents

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid seed config")
)
