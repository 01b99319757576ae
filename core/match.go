package core

import (
	"encoding/json"
	"time"
)

// MatchStatus is the lifecycle phase of a match.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
)

// IsValid reports whether s is one of the known statuses.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusScheduled, MatchStatusLive, MatchStatusFinished:
		return true
	}
	return false
}

// Match is a scheduled fixture between two teams.
type Match struct {
	ID        int64       `json:"id"`
	Sport     string      `json:"sport"`
	HomeTeam  string      `json:"homeTeam"`
	AwayTeam  string      `json:"awayTeam"`
	Status    MatchStatus `json:"status"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
	HomeScore int         `json:"homeScore"`
	AwayScore int         `json:"awayScore"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Commentary is a single play-by-play entry attached to a match.
type Commentary struct {
	ID        int64           `json:"id"`
	MatchID   int64           `json:"matchId"`
	Minute    int             `json:"minute"`
	Sequence  int             `json:"sequence"`
	Period    string          `json:"period"`
	EventType string          `json:"eventType"`
	Actor     string          `json:"actor"`
	Team      string          `json:"team"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// StatusAt derives the status a match should have at now. The boolean is
// false when either bound is the zero time and no status can be derived.
func StatusAt(start, end, now time.Time) (MatchStatus, bool) {
	if start.IsZero() || end.IsZero() {
		return "", false
	}
	if now.Before(start) {
		return MatchStatusScheduled, true
	}
	if !now.Before(end) {
		return MatchStatusFinished, true
	}
	return MatchStatusLive, true
}

// SyncStatus updates m.Status to the derived status at now and reports
// whether it changed.
func (m *Match) SyncStatus(now time.Time) bool {
	next, ok := StatusAt(m.StartTime, m.EndTime, now)
	if !ok || next == m.Status {
		return false
	}
	m.Status = next
	return true
}

// EventPublisher is notified by producers after a domain write has been
// persisted. Implementations must not block on client I/O.
type EventPublisher interface {
	MatchCreated(match *Match)
	Commentary(matchID int64, commentary *Commentary)
}
