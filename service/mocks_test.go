package service

import (
	"context"
	"sync"

	"scoreline/core"

	"github.com/stretchr/testify/mock"
)

// MockMatchStorage is a mock implementation of storage.MatchStorage.
type MockMatchStorage struct {
	mock.Mock
}

func (m *MockMatchStorage) CreateMatch(ctx context.Context, match *core.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockMatchStorage) GetMatch(ctx context.Context, id int64) (*core.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Match), args.Error(1)
}

func (m *MockMatchStorage) ListMatches(ctx context.Context, limit, offset int) ([]*core.Match, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*core.Match), args.Get(1).(int64), args.Error(2)
}

func (m *MockMatchStorage) UpdateMatchStatus(ctx context.Context, id int64, status core.MatchStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockMatchStorage) UpdateMatchScore(ctx context.Context, id int64, homeScore, awayScore int) error {
	args := m.Called(ctx, id, homeScore, awayScore)
	return args.Error(0)
}

// MockCommentaryStorage is a mock implementation of storage.CommentaryStorage.
type MockCommentaryStorage struct {
	mock.Mock
}

func (m *MockCommentaryStorage) CreateCommentary(ctx context.Context, c *core.Commentary) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCommentaryStorage) ListCommentary(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error) {
	args := m.Called(ctx, matchID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*core.Commentary), args.Get(1).(int64), args.Error(2)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu         sync.Mutex
	matches    []*core.Match
	commentary []*core.Commentary
}

func (p *recordingPublisher) MatchCreated(m *core.Match) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matches = append(p.matches, m)
}

func (p *recordingPublisher) Commentary(_ int64, c *core.Commentary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commentary = append(p.commentary, c)
}

func intPtr(v int) *int { return &v }
