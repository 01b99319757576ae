package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const (
	watchUserAgent   = "scoreline-watch/1.0"
	closeWaitTimeout = 2 * time.Second
)

// watchOptions configures a watch session.
type watchOptions struct {
	URL         string
	Matches     []int64
	Raw         bool
	Spinner     bool
	DialTimeout time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live match events",
		Long: `Connect to the WebSocket gateway, subscribe to the given matches and print
every event until interrupted. New matches are shown for every connection;
commentary only for subscribed matches.`,
		Example: "  scoreline watch --url ws://localhost:8000/ws --match 42 --match 7",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			opts.Spinner = !quiet && !opts.Raw
			return runWatch(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "ws://localhost:8000/ws", "Gateway WebSocket URL")
	cmd.Flags().Int64SliceVar(&opts.Matches, "match", nil, "Match id to subscribe to (repeatable)")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "Print raw JSON envelopes")
	cmd.Flags().DurationVar(&opts.DialTimeout, "dial-timeout", 10*time.Second, "Connection timeout")

	return cmd
}

// runWatch streams envelopes to out until ctx is cancelled or the server
// closes the connection. A normal or going-away close is not an error.
func runWatch(ctx context.Context, opts watchOptions, out io.Writer) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.DialTimeout,
	}
	header := http.Header{"User-Agent": []string{watchUserAgent}}

	var s *spinner.Spinner
	if opts.Spinner {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Connecting to " + opts.URL
		s.Start()
	}
	conn, resp, err := dialer.DialContext(ctx, opts.URL, header)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to %s: %s: %w", opts.URL, resp.Status, err)
		}
		return fmt.Errorf("failed to connect to %s: %w", opts.URL, err)
	}
	defer conn.Close()

	for _, id := range opts.Matches {
		if err := conn.WriteJSON(map[string]any{"type": "subscribe", "matchId": id}); err != nil {
			return fmt.Errorf("failed to subscribe to match %d: %w", id, err)
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWaitTimeout))
			_ = conn.SetReadDeadline(time.Now().Add(closeWaitTimeout))
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				printClose(out, ce)
				if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
					return nil
				}
				return fmt.Errorf("connection closed by server: %d %s", ce.Code, ce.Text)
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		printEnvelope(out, data, opts.Raw)
	}
}
