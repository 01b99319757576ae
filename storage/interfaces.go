package storage

import (
	"context"

	"scoreline/core"
)

// MatchStorage persists matches.
type MatchStorage interface {
	CreateMatch(ctx context.Context, match *core.Match) error
	GetMatch(ctx context.Context, id int64) (*core.Match, error)
	ListMatches(ctx context.Context, limit, offset int) ([]*core.Match, int64, error)
	UpdateMatchStatus(ctx context.Context, id int64, status core.MatchStatus) error
	UpdateMatchScore(ctx context.Context, id int64, homeScore, awayScore int) error
}

// CommentaryStorage persists play-by-play commentary.
type CommentaryStorage interface {
	CreateCommentary(ctx context.Context, commentary *core.Commentary) error
	ListCommentary(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error)
}
