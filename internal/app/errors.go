package app

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNotTrained        = errors.New("model not trained")
	ErrInvalidTestSize   = errors.New("test size must be in (0, 1)")
	ErrInvalidMinEntries = errors.New("min entries must be at least 1")
	ErrNoStore           = errors.New("no event store configured")
	ErrNoArtifacts       = errors.New("no artifact store configured")
	ErrKeyMismatch       = errors.New("model was trained for another key")
)
