package estimator

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNotFitted      = errors.New("estimator not fitted")
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrTooFewSamples  = errors.New("too few samples")
	ErrUnknownFamily  = errors.New("unknown model family")
	ErrInvalidPayload = errors.New("invalid model payload")
)
