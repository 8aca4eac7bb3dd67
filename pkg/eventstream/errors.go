package eventstream

import "errors"

// ErrNilEvent indicates a nil event was handed to a publisher.
var ErrNilEvent = errors.New("nil journal event")
