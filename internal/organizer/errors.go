package organizer

import (
	"errors"
	"fmt"
)

// ErrUnregisteredGroup means a tab's bucket was missing from the
// categorized set it was derived from.
var ErrUnregisteredGroup = errors.New("group was not registered during categorization")

// InputError reports a tab that lacks data a stage requires.
type InputError struct {
	TabID  int
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("tab %d: %s", e.TabID, e.Reason)
}

// StageError wraps the failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
