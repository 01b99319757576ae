package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"scoreline/core"

	"go.uber.org/zap"
)

// SQLiteCommentaryStorage handles commentary persistence in SQLite
type SQLiteCommentaryStorage struct {
	db     *SQLite
	logger *zap.SugaredLogger
}

var _ CommentaryStorage = (*SQLiteCommentaryStorage)(nil)

// NewSQLiteCommentaryStorage creates a new SQLite commentary storage handler
func NewSQLiteCommentaryStorage(db *SQLite, logger *zap.SugaredLogger) *SQLiteCommentaryStorage {
	return &SQLiteCommentaryStorage{db: db, logger: logger}
}

// CreateCommentary inserts c and fills in its ID and CreatedAt. A missing
// match is reported as ErrMatchNotFound.
func (s *SQLiteCommentaryStorage) CreateCommentary(ctx context.Context, c *core.Commentary) error {
	ctx, done := s.db.queryContext(ctx, "create_commentary")
	defer done()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var metadata, tags sql.NullString
	if len(c.Metadata) > 0 {
		metadata = sql.NullString{String: string(c.Metadata), Valid: true}
	}
	if c.Tags != nil {
		b, err := json.Marshal(c.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}

	var id int64
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches WHERE id = ?", c.MatchID).Scan(&exists); err != nil {
			return wrapError(ctx, "create commentary", err)
		}
		if exists == 0 {
			return ErrMatchNotFound
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO commentary (match_id, minute, sequence, period, event_type, actor, team, message, metadata, tags, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.MatchID, c.Minute, c.Sequence, c.Period, c.EventType, c.Actor, c.Team, c.Message,
			metadata, tags, c.CreatedAt.UTC())
		if err != nil {
			return wrapError(ctx, "create commentary", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return err
	}

	c.ID = id
	s.logger.Debugw("Commentary created", "commentary_id", id, "match_id", c.MatchID)
	return nil
}

// ListCommentary returns one page of commentary for matchID, newest first,
// and the total count for that match.
func (s *SQLiteCommentaryStorage) ListCommentary(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error) {
	ctx, done := s.db.queryContext(ctx, "list_commentary")
	defer done()

	var total int64
	if err := s.db.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM commentary WHERE match_id = ?", matchID).Scan(&total); err != nil {
		return nil, 0, wrapError(ctx, "count commentary", err)
	}

	rows, err := s.db.ReadDB.QueryContext(ctx, `
		SELECT id, match_id, minute, sequence, period, event_type, actor, team, message, metadata, tags, created_at
		FROM commentary WHERE match_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		matchID, limit, offset)
	if err != nil {
		return nil, 0, wrapError(ctx, "list commentary", err)
	}
	defer rows.Close()

	entries := make([]*core.Commentary, 0)
	for rows.Next() {
		var c core.Commentary
		var metadata, tags sql.NullString
		err := rows.Scan(&c.ID, &c.MatchID, &c.Minute, &c.Sequence, &c.Period, &c.EventType,
			&c.Actor, &c.Team, &c.Message, &metadata, &tags, &c.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan commentary: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			c.Metadata = json.RawMessage(metadata.String)
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &c.Tags); err != nil {
				s.logger.Warnw("Failed to decode commentary tags", "commentary_id", c.ID, "error", err)
			}
		}
		entries = append(entries, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapError(ctx, "list commentary", err)
	}
	return entries, total, nil
}
