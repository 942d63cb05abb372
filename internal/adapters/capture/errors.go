package capture

import "errors"

// Sentinel kinds for capture errors.
var (
	ErrClosed = errors.New("capture journal closed")
)
