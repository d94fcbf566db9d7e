package lock

import "errors"

// ErrNotLocked is returned when releasing a lock that is not held.
var ErrNotLocked = errors.New("lock: not locked")
