package eventstore

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidEvent      = errors.New("invalid score event")
)
