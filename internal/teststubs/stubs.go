package teststubs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
)

// StubGenerator is a test double for providers.Generator.
type StubGenerator struct {
	Response providers.Response
	Err      error
	Calls    atomic.Int32
	Notify   chan struct{}

	mu      sync.Mutex
	lastReq providers.Request
}

// Generate returns the configured response and error while tracking calls.
// Notify is closed on the first call.
func (s *StubGenerator) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	_ = ctx
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()
	if s.Notify != nil {
		select {
		case <-s.Notify:
		default:
			close(s.Notify)
		}
	}
	s.Calls.Add(1)
	return s.Response, s.Err
}

// LastRequest returns the most recent request.
func (s *StubGenerator) LastRequest() providers.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// SavedGame records one SaveGame call.
type SavedGame struct {
	Season string
	Game   games.Game
}

// StubPersistence is a test double for providers.Persistence that records writes.
type StubPersistence struct {
	Teams    []teams.Team
	Document schedule.Document
	LoadErr  error
	SaveErr  error

	mu      sync.Mutex
	saved   []SavedGame
	deleted []string
	notify  chan struct{}
}

// LoadTeams returns the configured teams.
func (s *StubPersistence) LoadTeams(ctx context.Context, sportID string) ([]teams.Team, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return s.Teams, nil
}

// LoadSchedule returns the configured document.
func (s *StubPersistence) LoadSchedule(ctx context.Context, sportID, season string) (schedule.Document, error) {
	if s.LoadErr != nil {
		return schedule.Document{}, s.LoadErr
	}
	return s.Document, nil
}

// SaveGame records g unless SaveErr is set.
func (s *StubPersistence) SaveGame(ctx context.Context, season string, g games.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.signal()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.saved = append(s.saved, SavedGame{Season: season, Game: g})
	return nil
}

// DeleteGame records gameID unless SaveErr is set.
func (s *StubPersistence) DeleteGame(ctx context.Context, sportID, season, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.signal()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.deleted = append(s.deleted, gameID)
	return nil
}

// Writes returns a channel that receives after every save or delete attempt.
func (s *StubPersistence) Writes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notify == nil {
		s.notify = make(chan struct{}, 64)
	}
	return s.notify
}

func (s *StubPersistence) signal() {
	if s.notify == nil {
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Saved returns the recorded saves.
func (s *StubPersistence) Saved() []SavedGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SavedGame(nil), s.saved...)
}

// Deleted returns the recorded deletes.
func (s *StubPersistence) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
