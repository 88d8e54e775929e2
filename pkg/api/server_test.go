package api

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/noshhq/nosh/pkg/auth"
	"github.com/noshhq/nosh/pkg/config"
	"github.com/noshhq/nosh/pkg/jobs"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/orchestrator"
	"github.com/noshhq/nosh/pkg/places"
	"github.com/noshhq/nosh/pkg/push"
	"github.com/noshhq/nosh/pkg/ratelimit"
)

// stubRunner returns a canned response and records requests. complete,
// when set, runs before returning (used to finish async jobs).
type stubRunner struct {
	mu       sync.Mutex
	requests []orchestrator.Request
	resp     *models.SearchResponse
	complete func(orchestrator.Request)
}

func (r *stubRunner) Run(_ context.Context, req orchestrator.Request) *models.SearchResponse {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.complete != nil {
		r.complete(req)
	}
	resp := *r.resp
	resp.RequestID = req.RequestID
	return &resp
}

func (r *stubRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// stubPhotos serves a fixed body.
type stubPhotos struct {
	err error
}

func (p *stubPhotos) Photo(context.Context, string, string, int) (*places.PhotoStream, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &places.PhotoStream{
		Body:        strings.NewReader("jpeg-bytes"),
		ContentType: "image/jpeg",
	}, nil
}

// downSessionStore simulates a session backend outage.
type downSessionStore struct{}

func (downSessionStore) IsAvailable(context.Context) bool { return false }
func (downSessionStore) Create(context.Context, string) (*auth.Session, error) {
	return nil, context.DeadlineExceeded
}
func (downSessionStore) Get(context.Context, string) (*auth.Session, bool) { return nil, false }

type testEnv struct {
	server   *Server
	cfg      *config.Config
	issuer   *auth.TokenIssuer
	sessions auth.SessionStore
	tickets  auth.TicketService
	runner   *stubRunner
	store    jobs.Store
	broker   *push.Broker
	connMgr  *push.ConnectionManager
}

func testConfig() *config.Config {
	return &config.Config{
		Env:             "development",
		JWTSecret:       "test-secret",
		SessionTTL:      time.Hour,
		TicketTTL:       30 * time.Second,
		FrontendOrigins: []string{"http://localhost:5173", "*.nosh.example"},
		RateLimit:       config.RateLimitConfig{SearchPerMinute: 100, PhotosPerMinute: 100},
	}
}

func newTestEnv(t *testing.T, mutate func(*testEnv)) *testEnv {
	t.Helper()

	env := &testEnv{
		cfg:      testConfig(),
		sessions: auth.NewMemorySessionStore(time.Hour),
		tickets:  auth.NewMemoryTicketService(30 * time.Second),
		store:    jobs.NewMemoryStore(time.Hour),
		broker:   push.NewBroker(),
		connMgr:  push.NewConnectionManager(time.Second, time.Minute),
		runner: &stubRunner{resp: &models.SearchResponse{
			Query:   models.QueryEcho{Original: "pizza", Parsed: "pizza", Language: "en"},
			Results: []models.Place{{ID: "p1", Name: "Pizza Roma"}},
			Chips:   []string{},
			Assist:  &models.Assist{Type: models.AssistSummary, Message: "Found 1"},
			Meta:    models.ResponseMeta{Mode: "textsearch", FailureReason: models.FailureNone},
		}},
	}
	env.issuer = auth.NewTokenIssuer(env.cfg.JWTSecret, time.Hour)
	if mutate != nil {
		mutate(env)
	}
	t.Cleanup(env.connMgr.Shutdown)

	env.server = NewServer(
		env.cfg, env.issuer, env.sessions, env.tickets,
		env.runner, env.store, env.connMgr, env.broker,
		ratelimit.NewMemoryLimiter(), &stubPhotos{}, nil, nil,
	)
	return env
}

// login creates a session and returns (sessionID, bearer token).
func (env *testEnv) login(t *testing.T) (string, string) {
	t.Helper()
	session, err := env.sessions.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	token, err := env.issuer.Mint(session.ID, session.UserID)
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return session.ID, token
}
