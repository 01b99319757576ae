package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"scoreline/admission"
	"scoreline/core"
	"scoreline/service"
	"scoreline/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewAPI_RequiresServices(t *testing.T) {
	assert.Panics(t, func() {
		NewAPI(Dependencies{}, testConfig(), nil)
	})
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	rr := doRequest(t, a, "GET", "/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "Available", body["status"])
	_, err := time.Parse(time.RFC3339Nano, body["timestamp"])
	assert.NoError(t, err)
}

func TestHealthCheck_StorageDown(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{
		Health: healthFunc(func(context.Context) error { return storage.ErrDatabaseClosed }),
	})
	rr := doRequest(t, a, "GET", "/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "Unavailable", body["status"])
}

func TestNotFound(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	rr := doRequest(t, a, "GET", "/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "requested path does not exist", body.Error)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	rr := doRequest(t, a, "DELETE", "/api/matches", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	doRequest(t, a, "GET", "/health", nil, nil)

	rr := doRequest(t, a, "GET", "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "scoreline_http_requests_total")
}

func TestListMatches_Pagination(t *testing.T) {
	var gotLimit, gotOffset int
	matches := &fakeMatchService{
		list: func(_ context.Context, limit, offset int) ([]*core.Match, int64, error) {
			gotLimit, gotOffset = limit, offset
			return []*core.Match{{ID: 3}, {ID: 2}}, 25, nil
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Matches: matches})

	rr := doRequest(t, a, "GET", "/api/matches?page=3&limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 20, gotOffset)

	var body struct {
		Items      []core.Match `json:"items"`
		Total      int64        `json:"total"`
		Page       int          `json:"page"`
		Limit      int          `json:"limit"`
		TotalPages int          `json:"total_pages"`
	}
	decodeBody(t, rr, &body)
	assert.Len(t, body.Items, 2)
	assert.Equal(t, int64(25), body.Total)
	assert.Equal(t, 3, body.Page)
	assert.Equal(t, 3, body.TotalPages)
}

func TestListMatches_DefaultsAndEmpty(t *testing.T) {
	var gotLimit int
	matches := &fakeMatchService{
		list: func(_ context.Context, limit, _ int) ([]*core.Match, int64, error) {
			gotLimit = limit
			return nil, 0, nil
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Matches: matches})

	rr := doRequest(t, a, "GET", "/api/matches", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultPageLimit, gotLimit)
	assert.Contains(t, rr.Body.String(), `"items":[]`)
}

func TestListMatches_InvalidQuery(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	for _, q := range []string{"limit=0", "limit=101", "limit=abc", "page=0", "page=-2"} {
		t.Run(q, func(t *testing.T) {
			rr := doRequest(t, a, "GET", "/api/matches?"+q, nil, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			var body errorResponse
			decodeBody(t, rr, &body)
			assert.Equal(t, "validation failed", body.Error)
			assert.NotEmpty(t, body.Details)
		})
	}
}

func TestListMatches_StorageErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"timeout", storage.ErrQueryTimeout, http.StatusServiceUnavailable, msgOverloaded},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, msgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := &fakeMatchService{
				list: func(context.Context, int, int) ([]*core.Match, int64, error) {
					return nil, 0, tt.err
				},
			}
			a := newTestAPI(t, testConfig(), Dependencies{Matches: matches})
			rr := doRequest(t, a, "GET", "/api/matches", nil, nil)
			require.Equal(t, tt.code, rr.Code)

			var body errorResponse
			decodeBody(t, rr, &body)
			assert.Equal(t, tt.message, body.Error)
			assert.NotContains(t, rr.Body.String(), "disk on fire")
		})
	}
}

func TestCreateMatch(t *testing.T) {
	var got service.CreateMatchInput
	matches := &fakeMatchService{
		create: func(_ context.Context, in service.CreateMatchInput) (*core.Match, error) {
			got = in
			return &core.Match{ID: 9, Sport: in.Sport, Status: core.MatchStatusScheduled}, nil
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Matches: matches})

	rr := doRequest(t, a, "POST", "/api/matches", validMatchBody(), nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Arsenal", got.HomeTeam)
	assert.Equal(t, 2*time.Hour, got.EndTime.Sub(got.StartTime))

	var match core.Match
	decodeBody(t, rr, &match)
	assert.Equal(t, int64(9), match.ID)
}

func TestCreateMatch_BadBodies(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})

	rr := doRequest(t, a, "POST", "/api/matches", `{"sport":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body := validMatchBody()
	body["startTime"] = "yesterday"
	rr = doRequest(t, a, "POST", "/api/matches", body, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body = validMatchBody()
	body["homeScore"] = "one"
	rr = doRequest(t, a, "POST", "/api/matches", body, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	huge := `{"sport":"` + strings.Repeat("x", maxRequestBodyBytes) + `"}`
	rr = doRequest(t, a, "POST", "/api/matches", huge, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestCreateMatch_ValidationError(t *testing.T) {
	matches := &fakeMatchService{
		create: func(context.Context, service.CreateMatchInput) (*core.Match, error) {
			return nil, &service.ValidationError{Issues: []string{"homeTeam failed min=3"}}
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Matches: matches})

	rr := doRequest(t, a, "POST", "/api/matches", validMatchBody(), nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, []string{"homeTeam failed min=3"}, body.Details)
}

func TestGetMatch(t *testing.T) {
	matches := &fakeMatchService{
		get: func(_ context.Context, id int64) (*core.Match, error) {
			if id == 404 {
				return nil, storage.ErrMatchNotFound
			}
			return &core.Match{ID: id}, nil
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Matches: matches})

	assert.Equal(t, http.StatusOK, doRequest(t, a, "GET", "/api/matches/5", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, a, "GET", "/api/matches/404", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, a, "GET", "/api/matches/abc", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, a, "GET", "/api/matches/0", nil, nil).Code)
}

func TestUpdateScore(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})

	rr := doRequest(t, a, "PATCH", "/api/matches/4/score", map[string]int{"homeScore": 2, "awayScore": 1}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var match core.Match
	decodeBody(t, rr, &match)
	assert.Equal(t, int64(4), match.ID)
	assert.Equal(t, 2, match.HomeScore)
	assert.Equal(t, 1, match.AwayScore)
}

func TestCommentaryRoutes(t *testing.T) {
	var listedMatch int64
	commentary := &fakeCommentaryService{
		create: func(_ context.Context, matchID int64, in service.CreateCommentaryInput) (*core.Commentary, error) {
			if matchID == 404 {
				return nil, storage.ErrMatchNotFound
			}
			return &core.Commentary{ID: 1, MatchID: matchID, Minute: *in.Minute, Message: in.Message}, nil
		},
		list: func(_ context.Context, matchID int64, _, _ int) ([]*core.Commentary, int64, error) {
			listedMatch = matchID
			return []*core.Commentary{{ID: 1, MatchID: matchID}}, 1, nil
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Commentary: commentary})

	entry := map[string]interface{}{
		"minute": 12, "sequence": 1, "period": "1H", "eventType": "goal",
		"actor": "Saka", "team": "Arsenal", "message": "Goal!",
		"metadata": map[string]interface{}{"assist": "Odegaard"}, "tags": []string{"goal"},
	}

	rr := doRequest(t, a, "POST", "/api/matches/7/commentary", entry, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created core.Commentary
	decodeBody(t, rr, &created)
	assert.Equal(t, int64(7), created.MatchID)
	assert.Equal(t, 12, created.Minute)

	rr = doRequest(t, a, "POST", "/api/matches/404/commentary", entry, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "match not found", body.Error)

	rr = doRequest(t, a, "GET", "/api/matches/7/commentary?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(7), listedMatch)
}

func TestRequireAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	var subject string
	matches := &fakeMatchService{
		create: func(ctx context.Context, in service.CreateMatchInput) (*core.Match, error) {
			subject, _ = GetSubject(ctx)
			return &core.Match{ID: 1}, nil
		},
	}
	a := newTestAPI(t, cfg, Dependencies{Matches: matches})

	rr := doRequest(t, a, "POST", "/api/matches", validMatchBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	rr = doRequest(t, a, "POST", "/api/matches", validMatchBody(), map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	other := testConfig()
	other.Auth.Issuer = "someone-else"
	foreign, err := GenerateToken(other, "feed", time.Minute)
	require.NoError(t, err)
	rr = doRequest(t, a, "POST", "/api/matches", validMatchBody(), map[string]string{"Authorization": "Bearer " + foreign})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	expired, err := GenerateToken(cfg, "feed", -time.Minute)
	require.NoError(t, err)
	rr = doRequest(t, a, "POST", "/api/matches", validMatchBody(), map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := GenerateToken(cfg, "feed", time.Minute)
	require.NoError(t, err)
	rr = doRequest(t, a, "POST", "/api/matches", validMatchBody(), map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "feed", subject)

	// Reads stay public.
	assert.Equal(t, http.StatusOK, doRequest(t, a, "GET", "/api/matches", nil, nil).Code)
}

func TestRequireAuth_SubjectInRequestLogs(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	matches := &fakeMatchService{
		create: func(context.Context, service.CreateMatchInput) (*core.Match, error) {
			return nil, errors.New("disk on fire")
		},
	}
	logCore, logs := observer.New(zap.DebugLevel)
	a := NewAPI(Dependencies{Matches: matches, Commentary: &fakeCommentaryService{}}, cfg, zap.New(logCore).Sugar())

	token, err := GenerateToken(cfg, "feed-7", time.Minute)
	require.NoError(t, err)
	rr := doRequest(t, a, "POST", "/api/matches", validMatchBody(), map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	failures := logs.FilterMessage(msgInternal).All()
	require.Len(t, failures, 1)
	assert.Equal(t, "feed-7", failures[0].ContextMap()["subject"])
	assert.Len(t, logs.FilterMessage("Request authenticated").FilterField(zap.String("subject", "feed-7")).All(), 1)
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	_, err := GenerateToken(cfg, "feed", time.Minute)
	assert.Error(t, err)
}

func TestAdmissionMiddleware(t *testing.T) {
	tests := []struct {
		decision admission.Decision
		err      error
		code     int
	}{
		{admission.Allow, nil, http.StatusOK},
		{admission.RateLimited, nil, http.StatusTooManyRequests},
		{admission.Deny, nil, http.StatusForbidden},
		{admission.GateError, admission.ErrEvaluatorUnavailable, http.StatusServiceUnavailable},
		{admission.Allow, errors.New("policy backend exploded"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		name := tt.decision.String()
		if tt.err != nil {
			name += "_with_error"
		}
		t.Run(name, func(t *testing.T) {
			var seen admission.Request
			eval := admission.EvaluatorFunc(func(_ context.Context, req admission.Request) (admission.Decision, error) {
				seen = req
				return tt.decision, tt.err
			})
			a := newTestAPI(t, testConfig(), Dependencies{Admission: eval})

			rr := doRequest(t, a, "GET", "/api/matches?page=1", nil, map[string]string{"User-Agent": "Mozilla/5.0"})
			assert.Equal(t, tt.code, rr.Code)
			assert.Equal(t, "/api/matches", seen.Path)
			assert.Equal(t, "Mozilla/5.0", seen.UserAgent)
			if tt.decision == admission.RateLimited {
				assert.Equal(t, "10", rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestAdmissionMiddleware_EvaluatorPanic(t *testing.T) {
	eval := admission.EvaluatorFunc(func(context.Context, admission.Request) (admission.Decision, error) {
		panic("policy backend exploded")
	})
	called := false
	matches := &fakeMatchService{
		list: func(context.Context, int, int) ([]*core.Match, int64, error) {
			called = true
			return nil, 0, nil
		},
	}
	a := newTestAPI(t, testConfig(), Dependencies{Matches: matches, Admission: eval})

	rr := doRequest(t, a, "GET", "/api/matches", nil, map[string]string{"User-Agent": "Mozilla/5.0"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, called)
}

func TestAdmissionMiddleware_SkipsHealthAndGateway(t *testing.T) {
	calls := 0
	eval := admission.EvaluatorFunc(func(context.Context, admission.Request) (admission.Decision, error) {
		calls++
		return admission.Deny, nil
	})
	gatewayHit := false
	gw := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayHit = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	a := newTestAPI(t, testConfig(), Dependencies{Admission: eval, Gateway: gw})

	assert.Equal(t, http.StatusOK, doRequest(t, a, "GET", "/health", nil, nil).Code)
	doRequest(t, a, "GET", "/ws", nil, nil)
	assert.True(t, gatewayHit)
	assert.Zero(t, calls)
}

func TestRequestID(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})

	rr := doRequest(t, a, "GET", "/health", nil, map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = doRequest(t, a, "GET", "/health", nil, map[string]string{"X-Request-ID": "bad\nid<script>"})
	assert.Equal(t, "badidscript", rr.Header().Get("X-Request-ID"))

	rr = doRequest(t, a, "GET", "/health", nil, nil)
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestCORS(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})

	rr := doRequest(t, a, "OPTIONS", "/api/matches", nil, map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	rr = doRequest(t, a, "GET", "/health", nil, map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"*"}
	a = newTestAPI(t, cfg, Dependencies{})
	rr = doRequest(t, a, "GET", "/health", nil, map[string]string{"Origin": "http://anywhere.example"})
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartStop(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	done := make(chan error, 1)
	go func() { done <- a.Start("127.0.0.1:0") }()

	require.Eventually(t, func() bool {
		a.serverMu.Lock()
		defer a.serverMu.Unlock()
		return a.server != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStopBeforeStart(t *testing.T) {
	a := newTestAPI(t, testConfig(), Dependencies{})
	require.NoError(t, a.Stop(context.Background()))
	assert.NoError(t, a.Start("127.0.0.1:0"))
}
