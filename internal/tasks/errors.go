package tasks

import (
	"errors"
)

// ErrPaused is what a Runner returns after ShouldPause reports true, to
// stop cooperatively because the registry or this task was paused. It
// must be returned unwrapped: the registry compares the runner's error
// with it by identity to tell a pause apart from a genuine failure.
var ErrPaused = errors.New("task paused")
