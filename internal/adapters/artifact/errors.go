package artifact

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNotFound       = errors.New("artifact not found")
	ErrSchemaMismatch = errors.New("artifact schema mismatch")
	ErrNotFitted      = errors.New("artifact is not fitted")
)
