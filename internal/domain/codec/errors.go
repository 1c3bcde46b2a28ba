package codec

import "errors"

// Sentinel kinds for codec errors.
var (
	// ErrEncoding marks a record that cannot be represented on the wire:
	// a string field over 65535 bytes or a frame over 65535 bytes.
	ErrEncoding = errors.New("record encoding failed")

	// ErrMalformedFrame marks a frame whose internal offsets or string
	// lengths are inconsistent with the frame's own bounds.
	ErrMalformedFrame = errors.New("malformed frame")
)
