// Package collab bridges the schedule store to other editors. Remote
// deltas arrive as CBOR envelopes and go through the store's commit queue
// like any local edit; local commits are published outward.
package collab

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/codec"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

// ErrInvalidEnvelope is returned for envelopes missing required fields.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope is the wire unit exchanged between editors.
type Envelope struct {
	ID      string      `cbor:"id"`
	Actor   string      `cbor:"actor"`
	SportID string      `cbor:"sportId"`
	Season  string      `cbor:"season"`
	Delta   games.Delta `cbor:"delta"`
	SentAt  time.Time   `cbor:"sentAt"`
}

// Validate checks the envelope carries an id, an actor and a well-formed delta.
func (e Envelope) Validate() error {
	if e.ID == "" || e.Actor == "" {
		return fmt.Errorf("%w: id and actor are required", ErrInvalidEnvelope)
	}
	if e.Delta.IsEmpty() {
		return fmt.Errorf("%w: empty delta", ErrInvalidEnvelope)
	}
	if err := e.Delta.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return nil
}

// Encode serializes the envelope deterministically.
func Encode(e Envelope) ([]byte, error) {
	return codec.Marshal(e)
}

// Decode parses an envelope and validates it.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := codec.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// DeltaOf reconstructs the delta a change event applied. Games present only
// after become adds, games present only before become removes and games
// present in both become moves pinned to their previous slot.
func DeltaOf(ev store.ChangeEvent) games.Delta {
	if ev.Before == nil || ev.After == nil {
		return games.Delta{}
	}
	ids := append([]string(nil), ev.Touched...)
	sort.Strings(ids)

	var d games.Delta
	for _, id := range ids {
		before, hadBefore := ev.Before.Game(id)
		after, hasAfter := ev.After.Game(id)
		switch {
		case hadBefore && hasAfter:
			d.Ops = append(d.Ops, moveOp(before, after))
		case hasAfter:
			g := after
			d.Ops = append(d.Ops, games.Op{Kind: games.OpAdd, Game: &g})
		case hadBefore:
			d.Ops = append(d.Ops, games.Op{Kind: games.OpRemove, GameID: id})
		}
	}
	return d
}

func moveOp(before, after games.Game) games.Op {
	from, to := before.Slot(), after.Slot()
	return games.Op{Kind: games.OpMove, GameID: after.ID, From: &from, To: &to}
}

// scope reports whether an envelope belongs to the given schedule.
func scope(e Envelope, meta schedule.Meta) bool {
	return e.SportID == meta.SportID && e.Season == meta.Season
}
