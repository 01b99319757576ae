package service

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"scoreline/core"
	"scoreline/storage"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CreateMatchInput is the payload accepted when scheduling a match.
type CreateMatchInput struct {
	Sport     string    `json:"sport" validate:"required,min=1,max=64"`
	HomeTeam  string    `json:"homeTeam" validate:"required,min=3,max=128"`
	AwayTeam  string    `json:"awayTeam" validate:"required,min=3,max=128"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtefield=StartTime"`
	HomeScore int       `json:"homeScore" validate:"gte=0"`
	AwayScore int       `json:"awayScore" validate:"gte=0"`
}

// UpdateScoreInput is the payload accepted when a score changes.
type UpdateScoreInput struct {
	HomeScore int `json:"homeScore" validate:"gte=0"`
	AwayScore int `json:"awayScore" validate:"gte=0"`
}

// MatchService owns match writes and publishes match_created after each
// successful insert.
type MatchService struct {
	matches   storage.MatchStorage
	publisher core.EventPublisher
	validate  *validator.Validate
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// NewMatchService creates a match service. publisher may be nil.
func NewMatchService(matches storage.MatchStorage, publisher core.EventPublisher, logger *zap.SugaredLogger) *MatchService {
	if matches == nil {
		panic("matches storage is required")
	}
	return &MatchService{
		matches:   matches,
		publisher: publisher,
		validate:  newValidator(),
		now:       time.Now,
		logger:    logger,
	}
}

// newValidator reports field names by their JSON tags.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Create validates in, stores the match with the status derived from its
// schedule, and publishes it.
func (s *MatchService) Create(ctx context.Context, in CreateMatchInput) (*core.Match, error) {
	in.Sport = strings.TrimSpace(in.Sport)
	in.HomeTeam = strings.TrimSpace(in.HomeTeam)
	in.AwayTeam = strings.TrimSpace(in.AwayTeam)
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}

	status, ok := core.StatusAt(in.StartTime, in.EndTime, s.now())
	if !ok {
		return nil, newValidationError("startTime and endTime must be valid timestamps")
	}

	match := &core.Match{
		Sport:     in.Sport,
		HomeTeam:  in.HomeTeam,
		AwayTeam:  in.AwayTeam,
		Status:    status,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		HomeScore: in.HomeScore,
		AwayScore: in.AwayScore,
	}
	if err := s.matches.CreateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	s.logger.Infow("Match created", "match_id", match.ID, "sport", match.Sport, "status", match.Status)
	if s.publisher != nil {
		s.publisher.MatchCreated(match)
	}
	return match, nil
}

// Get returns match id with its status brought up to date.
func (s *MatchService) Get(ctx context.Context, id int64) (*core.Match, error) {
	match, err := s.matches.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.syncStatus(ctx, match)
	return match, nil
}

// List returns one page of matches and the total count. Each returned match
// has its status re-derived from the clock and persisted when it changed.
func (s *MatchService) List(ctx context.Context, limit, offset int) ([]*core.Match, int64, error) {
	matches, total, err := s.matches.ListMatches(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list matches: %w", err)
	}
	for _, m := range matches {
		s.syncStatus(ctx, m)
	}
	return matches, total, nil
}

// UpdateScore sets the score of match id and returns the updated match.
func (s *MatchService) UpdateScore(ctx context.Context, id int64, in UpdateScoreInput) (*core.Match, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	if err := s.matches.UpdateMatchScore(ctx, id, in.HomeScore, in.AwayScore); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// syncStatus persists a derived status change. Failures are logged; the
// caller still sees the derived status.
func (s *MatchService) syncStatus(ctx context.Context, m *core.Match) {
	if !m.SyncStatus(s.now()) {
		return
	}
	if err := s.matches.UpdateMatchStatus(ctx, m.ID, m.Status); err != nil {
		s.logger.Warnw("Failed to persist match status", "match_id", m.ID, "status", m.Status, "error", err)
	}
}
