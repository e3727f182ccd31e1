package streaming

import "errors"

// ErrBroadcasterClosed is returned by Subscribe after Close.
var ErrBroadcasterClosed = errors.New("broadcaster is closed")
