package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"scoreline/config"
	"scoreline/core"
	"scoreline/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testJWTSecret = "test-secret-key-for-jwt-testing-minimum-32-chars"

type fakeMatchService struct {
	create      func(ctx context.Context, in service.CreateMatchInput) (*core.Match, error)
	get         func(ctx context.Context, id int64) (*core.Match, error)
	list        func(ctx context.Context, limit, offset int) ([]*core.Match, int64, error)
	updateScore func(ctx context.Context, id int64, in service.UpdateScoreInput) (*core.Match, error)
}

func (f *fakeMatchService) Create(ctx context.Context, in service.CreateMatchInput) (*core.Match, error) {
	if f.create != nil {
		return f.create(ctx, in)
	}
	return &core.Match{ID: 1, Sport: in.Sport, HomeTeam: in.HomeTeam, AwayTeam: in.AwayTeam}, nil
}

func (f *fakeMatchService) Get(ctx context.Context, id int64) (*core.Match, error) {
	if f.get != nil {
		return f.get(ctx, id)
	}
	return &core.Match{ID: id}, nil
}

func (f *fakeMatchService) List(ctx context.Context, limit, offset int) ([]*core.Match, int64, error) {
	if f.list != nil {
		return f.list(ctx, limit, offset)
	}
	return nil, 0, nil
}

func (f *fakeMatchService) UpdateScore(ctx context.Context, id int64, in service.UpdateScoreInput) (*core.Match, error) {
	if f.updateScore != nil {
		return f.updateScore(ctx, id, in)
	}
	return &core.Match{ID: id, HomeScore: in.HomeScore, AwayScore: in.AwayScore}, nil
}

type fakeCommentaryService struct {
	create func(ctx context.Context, matchID int64, in service.CreateCommentaryInput) (*core.Commentary, error)
	list   func(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error)
}

func (f *fakeCommentaryService) Create(ctx context.Context, matchID int64, in service.CreateCommentaryInput) (*core.Commentary, error) {
	if f.create != nil {
		return f.create(ctx, matchID, in)
	}
	return &core.Commentary{ID: 1, MatchID: matchID, Message: in.Message}, nil
}

func (f *fakeCommentaryService) List(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error) {
	if f.list != nil {
		return f.list(ctx, matchID, limit, offset)
	}
	return nil, 0, nil
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.WSPath = "/ws"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Admission.HTTP.Limit = 50
	cfg.Admission.HTTP.Window = 10 * time.Second
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.Issuer = "scoreline"
	return cfg
}

func newTestAPI(t *testing.T, cfg *config.Config, deps Dependencies) *API {
	t.Helper()
	if deps.Matches == nil {
		deps.Matches = &fakeMatchService{}
	}
	if deps.Commentary == nil {
		deps.Commentary = &fakeCommentaryService{}
	}
	return NewAPI(deps, cfg, zaptest.NewLogger(t).Sugar())
}

func doRequest(t *testing.T, a *API, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), "body: %s", rr.Body.String())
}

func validMatchBody() map[string]interface{} {
	return map[string]interface{}{
		"sport":     "football",
		"homeTeam":  "Arsenal",
		"awayTeam":  "Chelsea",
		"startTime": "2026-03-14T15:00:00Z",
		"endTime":   "2026-03-14T17:00:00Z",
	}
}
