package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scoreline/core"

	"go.uber.org/zap"
)

const matchColumns = "id, sport, home_team, away_team, status, start_time, end_time, home_score, away_score, created_at"

// SQLiteMatchStorage handles match persistence in SQLite
type SQLiteMatchStorage struct {
	db     *SQLite
	logger *zap.SugaredLogger
}

var _ MatchStorage = (*SQLiteMatchStorage)(nil)

// NewSQLiteMatchStorage creates a new SQLite match storage handler
func NewSQLiteMatchStorage(db *SQLite, logger *zap.SugaredLogger) *SQLiteMatchStorage {
	return &SQLiteMatchStorage{db: db, logger: logger}
}

// CreateMatch inserts match and fills in its ID and CreatedAt.
func (s *SQLiteMatchStorage) CreateMatch(ctx context.Context, match *core.Match) error {
	ctx, done := s.db.queryContext(ctx, "create_match")
	defer done()

	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}
	if match.Status == "" {
		match.Status = core.MatchStatusScheduled
	}

	result, err := s.db.WriteDB.ExecContext(ctx, `
		INSERT INTO matches (sport, home_team, away_team, status, start_time, end_time, home_score, away_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.Sport, match.HomeTeam, match.AwayTeam, string(match.Status),
		match.StartTime.UTC(), match.EndTime.UTC(), match.HomeScore, match.AwayScore, match.CreatedAt.UTC())
	if err != nil {
		return wrapError(ctx, "create match", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create match: failed to read id: %w", err)
	}
	match.ID = id
	s.logger.Debugw("Match created", "match_id", id, "sport", match.Sport)
	return nil
}

// GetMatch returns the match with id or ErrMatchNotFound.
func (s *SQLiteMatchStorage) GetMatch(ctx context.Context, id int64) (*core.Match, error) {
	ctx, done := s.db.queryContext(ctx, "get_match")
	defer done()

	row := s.db.ReadDB.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id)
	match, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, wrapError(ctx, "get match", err)
	}
	return match, nil
}

// ListMatches returns one page of matches, newest first, and the total count.
func (s *SQLiteMatchStorage) ListMatches(ctx context.Context, limit, offset int) ([]*core.Match, int64, error) {
	ctx, done := s.db.queryContext(ctx, "list_matches")
	defer done()

	var total int64
	if err := s.db.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches").Scan(&total); err != nil {
		return nil, 0, wrapError(ctx, "count matches", err)
	}

	rows, err := s.db.ReadDB.QueryContext(ctx,
		"SELECT "+matchColumns+" FROM matches ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, wrapError(ctx, "list matches", err)
	}
	defer rows.Close()

	matches := make([]*core.Match, 0)
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapError(ctx, "list matches", err)
	}
	return matches, total, nil
}

// UpdateMatchStatus sets the status of match id.
func (s *SQLiteMatchStorage) UpdateMatchStatus(ctx context.Context, id int64, status core.MatchStatus) error {
	ctx, done := s.db.queryContext(ctx, "update_match_status")
	defer done()

	result, err := s.db.WriteDB.ExecContext(ctx, "UPDATE matches SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return wrapError(ctx, "update match status", err)
	}
	return requireOneRow(result)
}

// UpdateMatchScore sets both scores of match id.
func (s *SQLiteMatchStorage) UpdateMatchScore(ctx context.Context, id int64, homeScore, awayScore int) error {
	ctx, done := s.db.queryContext(ctx, "update_match_score")
	defer done()

	result, err := s.db.WriteDB.ExecContext(ctx,
		"UPDATE matches SET home_score = ?, away_score = ? WHERE id = ?", homeScore, awayScore, id)
	if err != nil {
		return wrapError(ctx, "update match score", err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrMatchNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*core.Match, error) {
	var m core.Match
	var status string
	err := row.Scan(&m.ID, &m.Sport, &m.HomeTeam, &m.AwayTeam, &status,
		&m.StartTime, &m.EndTime, &m.HomeScore, &m.AwayScore, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = core.MatchStatus(status)
	return &m, nil
}
