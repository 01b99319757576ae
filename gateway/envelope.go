package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Outbound envelope types.
const (
	TypeWelcome      = "welcome"
	TypeMatchCreated = "match_created"
	TypeCommentary   = "commentary"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
)

// Inbound control types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// MaxSafeInteger is the largest integer a JSON client can represent exactly.
const MaxSafeInteger = 1<<53 - 1

var (
	// ErrMalformedMessage is returned for frames that are not valid JSON.
	ErrMalformedMessage = errors.New("invalid JSON")
	// ErrSendQueueFull is returned when a peer cannot take another frame.
	ErrSendQueueFull = errors.New("peer send queue full or closed")
)

// Envelope is the JSON frame exchanged with clients.
type Envelope struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	MatchID *int64 `json:"matchId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Subscribed builds the acknowledgement for a subscribe request.
func Subscribed(matchID int64) Envelope {
	return Envelope{Type: TypeSubscribed, MatchID: &matchID}
}

// Unsubscribed builds the acknowledgement for an unsubscribe request.
func Unsubscribed(matchID int64) Envelope {
	return Envelope{Type: TypeUnsubscribed, MatchID: &matchID}
}

// ErrorEnvelope builds an error frame carrying message.
func ErrorEnvelope(message string) Envelope {
	return Envelope{Type: TypeError, Message: message}
}

// Inbound is a decoded client control frame. HasMatchID is false when the
// matchId was missing or failed the safe integer check.
type Inbound struct {
	Type       string
	MatchID    int64
	HasMatchID bool
}

// DecodeInbound parses a client frame. Only syntactically invalid JSON is an
// error; well-formed frames of the wrong shape decode to an Inbound with an
// empty Type, which callers ignore.
func DecodeInbound(frame []byte) (Inbound, error) {
	if !json.Valid(frame) {
		return Inbound{}, ErrMalformedMessage
	}

	var raw struct {
		Type    json.RawMessage `json:"type"`
		MatchID json.RawMessage `json:"matchId"`
	}
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Inbound{}, nil
	}

	var in Inbound
	if err := json.Unmarshal(raw.Type, &in.Type); err != nil {
		return Inbound{}, nil
	}
	in.MatchID, in.HasMatchID = coerceMatchID(raw.MatchID)
	return in, nil
}

// coerceMatchID accepts a JSON number or a numeric string and reports whether
// it is an integer within ±MaxSafeInteger. Booleans, null and empty strings
// are rejected rather than read as 0 or 1.
func coerceMatchID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return 0, false
	}
	if text == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > MaxSafeInteger {
		return 0, false
	}
	return int64(f), true
}
