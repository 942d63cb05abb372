package gate

import "errors"

// Sentinel kinds for gate errors.
var (
	ErrClosed = errors.New("gate closed")
)
