package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"scoreline/core"
	"scoreline/gateway"

	"github.com/gorilla/websocket"
)

// envelope mirrors the gateway's outbound message shape.
type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	MatchID *int64          `json:"matchId,omitempty"`
	Message string          `json:"message,omitempty"`
}

// printEnvelope renders one server frame. Unknown or undecodable frames are
// printed verbatim.
func printEnvelope(out io.Writer, data []byte, raw bool) {
	if raw {
		fmt.Fprintln(out, string(data))
		return
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		fmt.Fprintln(out, string(data))
		return
	}

	stamp := time.Now().Format("15:04:05")
	switch env.Type {
	case gateway.TypeWelcome:
		successColor.Fprintf(out, "%s connected\n", stamp)
	case gateway.TypeSubscribed:
		successColor.Fprintf(out, "%s subscribed to match %s\n", stamp, formatMatchID(env.MatchID))
	case gateway.TypeUnsubscribed:
		warningColor.Fprintf(out, "%s unsubscribed from match %s\n", stamp, formatMatchID(env.MatchID))
	case gateway.TypeError:
		errorColor.Fprintf(out, "%s error: %s\n", stamp, env.Message)
	case gateway.TypeMatchCreated:
		var m core.Match
		if err := json.Unmarshal(env.Data, &m); err != nil {
			fmt.Fprintln(out, string(data))
			return
		}
		headerColor.Fprintf(out, "%s new match #%d ", stamp, m.ID)
		fmt.Fprintf(out, "%s: %s vs %s (%s, starts %s)\n",
			m.Sport, m.HomeTeam, m.AwayTeam, m.Status, m.StartTime.Local().Format("Jan 2 15:04"))
	case gateway.TypeCommentary:
		var c core.Commentary
		if err := json.Unmarshal(env.Data, &c); err != nil {
			fmt.Fprintln(out, string(data))
			return
		}
		infoColor.Fprintf(out, "%s #%d %d' %s ", stamp, c.MatchID, c.Minute, c.Period)
		fmt.Fprintf(out, "[%s] %s (%s): %s\n", c.EventType, c.Actor, c.Team, c.Message)
	default:
		fmt.Fprintln(out, string(data))
	}
}

func formatMatchID(id *int64) string {
	if id == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *id)
}

func printClose(out io.Writer, ce *websocket.CloseError) {
	switch ce.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		warningColor.Fprintf(out, "connection closed: %s\n", closeText(ce))
	default:
		errorColor.Fprintf(out, "connection refused or dropped (%d): %s\n", ce.Code, closeText(ce))
	}
}

func closeText(ce *websocket.CloseError) string {
	if ce.Text != "" {
		return ce.Text
	}
	return fmt.Sprintf("code %d", ce.Code)
}
