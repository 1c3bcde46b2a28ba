package service

import "errors"

// Sentinel errors returned by the service layer.
var (
	// ErrInvalidSubmission marks a submission that failed validation.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrQueueFull signals backpressure on the write path.
	ErrQueueFull = errors.New("submission queue full")

	// ErrUnknownBackend is returned for an unrecognized store backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)
