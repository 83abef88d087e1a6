package interfaces

import "errors"

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned by stores when a status update targets an
// entry that is not in the expected source state (for example retrying an
// entry that is not failed). Entries only ever move along the lifecycle
// documented on models.EntryStatus.
var ErrInvalidTransition = errors.New("invalid status transition")
