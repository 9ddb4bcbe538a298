package store

import (
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

// OriginKind says who asked for a change.
type OriginKind string

const (
	OriginLocal      OriginKind = "local"
	OriginSuggestion OriginKind = "suggestion"
	OriginRemote     OriginKind = "remote"
)

// Origin identifies the source of a change. SessionID is set by drag
// sessions, SuggestionID by the suggestion manager.
type Origin struct {
	Kind         OriginKind `json:"kind"`
	Actor        string     `json:"actor,omitempty"`
	SessionID    string     `json:"sessionId,omitempty"`
	SuggestionID string     `json:"suggestionId,omitempty"`
}

// Local is a convenience for an origin of kind local.
func Local(actor string) Origin {
	return Origin{Kind: OriginLocal, Actor: actor}
}

// ChangeKind distinguishes events.
type ChangeKind string

const (
	ChangeLoad   ChangeKind = "load"
	ChangeCommit ChangeKind = "commit"
	ChangeRevert ChangeKind = "revert"
)

// ChangeEvent is delivered to subscribers after every applied change.
type ChangeEvent struct {
	ID        string
	Kind      ChangeKind
	Origin    Origin
	Revision  uint64
	Before    *schedule.Schedule
	After     *schedule.Schedule
	Touched   []string
	Conflicts []rules.Conflict
	// Reverted is the change id undone by a revert event.
	Reverted string
	At       time.Time
}

// Touches reports whether the event changed the given game.
func (e ChangeEvent) Touches(gameID string) bool {
	for _, id := range e.Touched {
		if id == gameID {
			return true
		}
	}
	return false
}

// CommitResult describes an accepted commit. NoOp commits carry no change id.
type CommitResult struct {
	ChangeID  string           `json:"changeId,omitempty"`
	Revision  uint64           `json:"revision"`
	Conflicts []rules.Conflict `json:"conflicts"`
	Touched   []string         `json:"touched,omitempty"`
	NoOp      bool             `json:"noOp,omitempty"`
}

// Snapshot is a consistent read of the store.
type Snapshot struct {
	Schedule  *schedule.Schedule
	Teams     teams.Index
	Conflicts []rules.Conflict
	Revision  uint64
}

// Loaded reports whether a schedule has been loaded.
func (s Snapshot) Loaded() bool {
	return s.Schedule != nil
}
