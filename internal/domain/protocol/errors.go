package protocol

import "errors"

// Sentinel kinds for codec errors.
var (
	// ErrMalformed marks a frame whose shape or numeric fields are invalid.
	ErrMalformed = errors.New("malformed frame")

	// ErrForeignTag marks a frame whose tag field is not the reserved
	// marker. Such frames are noise from the shared link, not failures.
	ErrForeignTag = errors.New("foreign frame tag")
)
