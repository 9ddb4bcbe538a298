package games

import (
	"fmt"
	"sort"
)

// OpKind enumerates schedule edit operations.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpRemove OpKind = "remove"
	OpMove   OpKind = "move"
)

// Op is a single edit. Add carries the full game; remove and move reference
// an existing game by id. From records the slot the requester observed so a
// move or remove prepared against an older schedule can be detected.
type Op struct {
	Kind   OpKind `json:"kind" yaml:"kind"`
	GameID string `json:"gameId,omitempty" yaml:"gameId,omitempty"`
	Game   *Game  `json:"game,omitempty" yaml:"game,omitempty"`
	From   *Slot  `json:"from,omitempty" yaml:"from,omitempty"`
	To     *Slot  `json:"to,omitempty" yaml:"to,omitempty"`
}

// TargetID returns the id of the game the op touches.
func (o Op) TargetID() string {
	if o.Kind == OpAdd && o.Game != nil {
		return o.Game.ID
	}
	return o.GameID
}

// Validate checks the op is well formed.
func (o Op) Validate() error {
	switch o.Kind {
	case OpAdd:
		if o.Game == nil {
			return fmt.Errorf("add op requires a game")
		}
		return o.Game.Validate()
	case OpRemove:
		if o.GameID == "" {
			return fmt.Errorf("remove op requires a game id")
		}
		return nil
	case OpMove:
		if o.GameID == "" {
			return fmt.Errorf("move op requires a game id")
		}
		if o.To == nil {
			return fmt.Errorf("move op for %s requires a target slot", o.GameID)
		}
		return o.To.Validate()
	default:
		return fmt.Errorf("unknown op kind %q", o.Kind)
	}
}

// Delta is an ordered set of edits applied atomically.
type Delta struct {
	Ops []Op `json:"ops" yaml:"ops"`
}

// Move builds a single-op delta moving gameID from one slot to another.
func Move(gameID string, from, to Slot) Delta {
	return Delta{Ops: []Op{{Kind: OpMove, GameID: gameID, From: &from, To: &to}}}
}

// Add builds a single-op delta adding g.
func Add(g Game) Delta {
	return Delta{Ops: []Op{{Kind: OpAdd, Game: &g}}}
}

// Remove builds a single-op delta removing gameID.
func Remove(gameID string) Delta {
	return Delta{Ops: []Op{{Kind: OpRemove, GameID: gameID}}}
}

// IsEmpty reports whether the delta has no ops.
func (d Delta) IsEmpty() bool {
	return len(d.Ops) == 0
}

// GameIDs returns the sorted, distinct ids of games the delta touches.
func (d Delta) GameIDs() []string {
	seen := make(map[string]struct{}, len(d.Ops))
	ids := make([]string, 0, len(d.Ops))
	for _, op := range d.Ops {
		id := op.TargetID()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every op.
func (d Delta) Validate() error {
	for i, op := range d.Ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	return nil
}
