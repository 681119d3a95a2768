package features

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidWindow = errors.New("window size must be at least 1")
)
