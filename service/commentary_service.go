package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"scoreline/core"
	"scoreline/storage"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CreateCommentaryInput is the payload accepted for a new commentary entry.
// Minute and Sequence are pointers so that an omitted field is rejected
// while an explicit zero is accepted.
type CreateCommentaryInput struct {
	Minute    *int            `json:"minute" validate:"required,gte=0"`
	Sequence  *int            `json:"sequence" validate:"required,gte=0"`
	Period    string          `json:"period" validate:"required,max=32"`
	EventType string          `json:"eventType" validate:"required,max=64"`
	Actor     string          `json:"actor" validate:"required,max=128"`
	Team      string          `json:"team" validate:"required,max=128"`
	Message   string          `json:"message" validate:"required,max=2000"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Tags      []string        `json:"tags,omitempty" validate:"omitempty,max=20,dive,required,max=64"`
}

// CommentaryService owns commentary writes and publishes each entry to the
// match's subscribers once stored.
type CommentaryService struct {
	commentary storage.CommentaryStorage
	publisher  core.EventPublisher
	validate   *validator.Validate
	logger     *zap.SugaredLogger
}

// NewCommentaryService creates a commentary service. publisher may be nil.
func NewCommentaryService(commentary storage.CommentaryStorage, publisher core.EventPublisher, logger *zap.SugaredLogger) *CommentaryService {
	if commentary == nil {
		panic("commentary storage is required")
	}
	return &CommentaryService{
		commentary: commentary,
		publisher:  publisher,
		validate:   newValidator(),
		logger:     logger,
	}
}

// Create validates in, stores it against matchID, and publishes it.
// storage.ErrMatchNotFound is returned unchanged for an unknown match.
func (s *CommentaryService) Create(ctx context.Context, matchID int64, in CreateCommentaryInput) (*core.Commentary, error) {
	if matchID < 0 {
		return nil, newValidationError("matchId must be a non-negative integer")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	if len(in.Metadata) > 0 && !isJSONObject(in.Metadata) {
		return nil, newValidationError("metadata must be a JSON object")
	}

	c := &core.Commentary{
		MatchID:   matchID,
		Minute:    *in.Minute,
		Sequence:  *in.Sequence,
		Period:    in.Period,
		EventType: in.EventType,
		Actor:     in.Actor,
		Team:      in.Team,
		Message:   in.Message,
		Metadata:  in.Metadata,
		Tags:      in.Tags,
	}
	if err := s.commentary.CreateCommentary(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create commentary: %w", err)
	}

	s.logger.Debugw("Commentary created", "commentary_id", c.ID, "match_id", matchID, "event_type", c.EventType)
	if s.publisher != nil {
		s.publisher.Commentary(matchID, c)
	}
	return c, nil
}

// List returns one page of commentary for matchID and the total count.
func (s *CommentaryService) List(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error) {
	entries, total, err := s.commentary.ListCommentary(ctx, matchID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list commentary: %w", err)
	}
	return entries, total, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]any
	return json.Unmarshal(trimmed, &obj) == nil
}
