package drag

import (
	"fmt"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
)

// State is the closed set of drag states. Only the types in this package
// implement it.
type State interface {
	isState()
}

// Idle means no drag is in progress.
type Idle struct{}

// Dragging means a game has been picked up but is not over a target.
type Dragging struct{}

// Hovering means the game is over a target slot. Preview holds the
// conflicts the move would produce once Pending is false.
type Hovering struct {
	Target  games.Slot
	Delta   games.Delta
	Preview []rules.Conflict
	Pending bool
	Err     error
}

// Dropped is terminal: the move was committed.
type Dropped struct {
	ChangeID  string
	Conflicts []rules.Conflict
}

// Cancelled is terminal: the drag ended without a commit.
type Cancelled struct {
	Reason string
}

func (Idle) isState()      {}
func (Dragging) isState()  {}
func (Hovering) isState()  {}
func (Dropped) isState()   {}
func (Cancelled) isState() {}

// Name returns a stable label for logs, metrics and JSON.
func Name(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Hovering:
		return "hovering"
	case Dropped:
		return "dropped"
	case Cancelled:
		return "cancelled"
	default:
		panic(fmt.Sprintf("drag: unknown state %T", s))
	}
}

// Terminal reports whether no further transitions are possible.
func Terminal(s State) bool {
	switch s.(type) {
	case Dropped, Cancelled:
		return true
	case Idle, Dragging, Hovering:
		return false
	default:
		panic(fmt.Sprintf("drag: unknown state %T", s))
	}
}

// Session is a value snapshot of a drag.
type Session struct {
	ID        string
	GameID    string
	Actor     string
	From      games.Slot
	State     State
	StartedAt time.Time
}

// Summary is the JSON shape of a session.
type Summary struct {
	ID        string           `json:"id"`
	GameID    string           `json:"gameId"`
	Actor     string           `json:"actor,omitempty"`
	State     string           `json:"state"`
	From      games.Slot       `json:"from"`
	Target    *games.Slot      `json:"target,omitempty"`
	Conflicts []rules.Conflict `json:"conflicts,omitempty"`
	Pending   bool             `json:"pending,omitempty"`
	Error     string           `json:"error,omitempty"`
	ChangeID  string           `json:"changeId,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Summary flattens the session for transport.
func (s Session) Summary() Summary {
	out := Summary{
		ID:     s.ID,
		GameID: s.GameID,
		Actor:  s.Actor,
		State:  Name(s.State),
		From:   s.From,
	}
	switch st := s.State.(type) {
	case Idle, Dragging:
	case Hovering:
		target := st.Target
		out.Target = &target
		out.Conflicts = st.Preview
		out.Pending = st.Pending
		if st.Err != nil {
			out.Error = st.Err.Error()
		}
	case Dropped:
		out.ChangeID = st.ChangeID
		out.Conflicts = st.Conflicts
	case Cancelled:
		out.Reason = st.Reason
	default:
		panic(fmt.Sprintf("drag: unknown state %T", s.State))
	}
	return out
}
