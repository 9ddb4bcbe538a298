package httpgen

import "github.com/preston-bernstein/ftbuilder/internal/domain/rules"

type generateRequest struct {
	SportID     string             `json:"sport_id"`
	Season      string             `json:"season"`
	Constraints []rules.Constraint `json:"constraints"`
	Games       []gamePayload      `json:"games,omitempty"`
}

type generateResponse struct {
	Data dataPayload  `json:"data"`
	Meta metaResponse `json:"meta"`
}

type dataPayload struct {
	Games       []gamePayload       `json:"games"`
	Suggestions []suggestionPayload `json:"suggestions"`
}

type gamePayload struct {
	ID         string `json:"id"`
	HomeTeamID string `json:"home_team_id"`
	AwayTeamID string `json:"away_team_id"`
	Date       string `json:"date"`
	Time       string `json:"time,omitempty"`
	Venue      string `json:"venue,omitempty"`
	Network    string `json:"network,omitempty"`
}

type slotPayload struct {
	Date  string `json:"date"`
	Time  string `json:"time,omitempty"`
	Venue string `json:"venue,omitempty"`
}

type opPayload struct {
	Kind   string       `json:"kind"`
	GameID string       `json:"game_id,omitempty"`
	Game   *gamePayload `json:"game,omitempty"`
	From   *slotPayload `json:"from,omitempty"`
	To     *slotPayload `json:"to,omitempty"`
}

type suggestionPayload struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Rationale string      `json:"rationale"`
	CreatedAt string      `json:"created_at"`
	Ops       []opPayload `json:"ops"`
}

type metaResponse struct {
	TotalPages int `json:"total_pages"`
}
