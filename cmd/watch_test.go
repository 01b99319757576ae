package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"scoreline/admission"
	"scoreline/core"
	"scoreline/gateway"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// lockedBuffer lets the test read output while runWatch is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startTestGateway(t *testing.T, evaluator admission.Evaluator) (*gateway.Gateway, string) {
	t.Helper()
	g := gateway.New(gateway.Options{}, evaluator, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(g)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = g.Shutdown(ctx)
		srv.Close()
	})
	return g, "ws" + strings.TrimPrefix(srv.URL, "http") + g.Path()
}

func decideWith(d admission.Decision) admission.Evaluator {
	return admission.EvaluatorFunc(func(context.Context, admission.Request) (admission.Decision, error) {
		return d, nil
	})
}

func TestRunWatch_PrintsEvents(t *testing.T) {
	color.NoColor = true
	g, url := startTestGateway(t, decideWith(admission.Allow))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWatch(ctx, watchOptions{URL: url, Matches: []int64{42}, DialTimeout: 2 * time.Second}, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "subscribed to match 42")
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	g.Broadcaster().MatchCreated(&core.Match{
		ID: 7, Sport: "football", HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		Status: core.MatchStatusScheduled, StartTime: start, EndTime: start.Add(2 * time.Hour),
	})
	g.Broadcaster().Commentary(42, &core.Commentary{
		MatchID: 42, Minute: 12, Period: "1H", EventType: "goal",
		Actor: "Saka", Team: "Arsenal", Message: "Curled into the far corner",
	})
	g.Broadcaster().Commentary(9, &core.Commentary{MatchID: 9, Message: "not subscribed"})

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "Arsenal vs Chelsea") && strings.Contains(s, "Curled into the far corner")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runWatch did not return after cancel")
	}

	s := out.String()
	assert.Contains(t, s, "connected")
	assert.Contains(t, s, "new match #7")
	assert.Contains(t, s, "[goal] Saka (Arsenal)")
	assert.NotContains(t, s, "not subscribed")
}

func TestRunWatch_RawOutput(t *testing.T) {
	_, url := startTestGateway(t, decideWith(admission.Allow))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWatch(ctx, watchOptions{URL: url, Raw: true, DialTimeout: 2 * time.Second}, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `{"type":"welcome"`)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRunWatch_RefusedConnection(t *testing.T) {
	color.NoColor = true
	_, url := startTestGateway(t, decideWith(admission.Deny))

	out := &lockedBuffer{}
	err := runWatch(context.Background(), watchOptions{URL: url, DialTimeout: 2 * time.Second}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1008")
	assert.Contains(t, out.String(), "access denied")
}

func TestRunWatch_ServerShutdownIsNotAnError(t *testing.T) {
	g, url := startTestGateway(t, decideWith(admission.Allow))

	out := &lockedBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWatch(context.Background(), watchOptions{URL: url, DialTimeout: 2 * time.Second}, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "connected")
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runWatch did not return after shutdown")
	}
	assert.Contains(t, out.String(), "server shutting down")
}

func TestRunWatch_DialFailure(t *testing.T) {
	err := runWatch(context.Background(), watchOptions{URL: "ws://127.0.0.1:1/ws", DialTimeout: time.Second}, &lockedBuffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
