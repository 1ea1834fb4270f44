package storage

import "errors"

// ErrObjectNotFound indicates that no object exists at the requested path
var ErrObjectNotFound = errors.New("object not found")

// ErrSizeLimitExceeded indicates that an object is larger than the maximum
// size the caller was willing to receive
var ErrSizeLimitExceeded = errors.New("object exceeds the requested size limit")

// ErrUnsupported indicates that the active boundary implementation does not
// support the requested operation (e.g. signed URLs on a purely local store)
var ErrUnsupported = errors.New("operation not supported by this storage boundary")
