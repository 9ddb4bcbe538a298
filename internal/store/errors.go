package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
)

var (
	// ErrInvalidSchedule is returned by Load when the input breaks a structural invariant.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidDelta is returned when a delta would leave the schedule structurally broken.
	ErrInvalidDelta = errors.New("invalid delta")
	// ErrUnknownChange is returned by Revert for ids that are not in the undo log.
	ErrUnknownChange = errors.New("unknown change")
	// ErrNotLoaded is returned when editing before any schedule was loaded.
	ErrNotLoaded = errors.New("no schedule loaded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// ConflictRejectedError reports the hard conflicts the schedule would hold
// after a rejected commit.
type ConflictRejectedError struct {
	Conflicts []rules.Conflict
}

func (e *ConflictRejectedError) Error() string {
	kinds := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		kinds = append(kinds, string(c.Kind))
	}
	return fmt.Sprintf("commit rejected: %d hard conflict(s) [%s]", len(e.Conflicts), strings.Join(kinds, ", "))
}

// AsConflictRejected unwraps err into a ConflictRejectedError.
func AsConflictRejected(err error) (*ConflictRejectedError, bool) {
	var rejected *ConflictRejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}
