package suggestions

import (
	"testing"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
)

func TestSuggestionValidate(t *testing.T) {
	move := games.Move("g1", games.Slot{Date: "2025-03-01"}, games.Slot{Date: "2025-03-02"})
	cases := []struct {
		name    string
		s       Suggestion
		wantErr bool
	}{
		{name: "ok", s: Suggestion{Source: SourceAI, Delta: move}},
		{name: "collaborator", s: Suggestion{Source: SourceCollaborator, Delta: move}},
		{name: "bad source", s: Suggestion{Source: "oracle", Delta: move}, wantErr: true},
		{name: "empty delta", s: Suggestion{Source: SourceAI}, wantErr: true},
		{name: "bad op", s: Suggestion{Source: SourceAI, Delta: games.Delta{Ops: []games.Op{{Kind: games.OpMove}}}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	s := Suggestion{Delta: games.Delta{Ops: []games.Op{
		{Kind: games.OpRemove, GameID: "g2"},
		{Kind: games.OpRemove, GameID: "g1"},
	}}}
	got := s.References()
	if len(got) != 2 || got[0] != "g1" || got[1] != "g2" {
		t.Fatalf("unexpected references %v", got)
	}
}
