package suggestions

import (
	"fmt"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
)

// Source identifies who produced a suggestion.
type Source string

const (
	SourceAI           Source = "ai"
	SourceCollaborator Source = "collaborator"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceAI || s == SourceCollaborator
}

// Status is a suggestion's lifecycle position.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusApplied   Status = "applied"
	StatusDismissed Status = "dismissed"
	StatusStale     Status = "stale"
)

// Suggestion is a proposed delta awaiting a decision.
type Suggestion struct {
	ID        string      `json:"id" yaml:"id"`
	Source    Source      `json:"source" yaml:"source"`
	Delta     games.Delta `json:"delta" yaml:"delta"`
	Rationale string      `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Status    Status      `json:"status" yaml:"status"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
	// ChangeID is the commit that applied the suggestion.
	ChangeID string `json:"changeId,omitempty" yaml:"changeId,omitempty"`
	// StaleBy is the change that invalidated the suggestion.
	StaleBy string `json:"staleBy,omitempty" yaml:"staleBy,omitempty"`
}

// References lists the game ids the suggestion's delta touches.
func (s Suggestion) References() []string {
	return s.Delta.GameIDs()
}

// Validate checks the suggestion is well formed.
func (s Suggestion) Validate() error {
	if !s.Source.Valid() {
		return fmt.Errorf("unknown suggestion source %q", s.Source)
	}
	if s.Delta.IsEmpty() {
		return fmt.Errorf("suggestion has no operations")
	}
	return s.Delta.Validate()
}
