// Package api exposes the HTTP surface: auth endpoints, sync/async
// search, owner-only result retrieval, the SSE assistant stream, the
// photos proxy and the push-socket upgrade.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"

	"github.com/noshhq/nosh/pkg/auth"
	"github.com/noshhq/nosh/pkg/config"
	"github.com/noshhq/nosh/pkg/enrich"
	"github.com/noshhq/nosh/pkg/jobs"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/orchestrator"
	"github.com/noshhq/nosh/pkg/places"
	"github.com/noshhq/nosh/pkg/push"
	"github.com/noshhq/nosh/pkg/ratelimit"
)

// SearchRunner executes one search pipeline run.
type SearchRunner interface {
	Run(ctx context.Context, req orchestrator.Request) *models.SearchResponse
}

// PhotoFetcher streams photo media from the provider.
type PhotoFetcher interface {
	Photo(ctx context.Context, placeID, photoID string, maxWidthPx int) (*places.PhotoStream, error)
}

// Server is the HTTP server.
type Server struct {
	cfg  *config.Config
	echo *echo.Echo
	http *http.Server

	issuer   *auth.TokenIssuer
	sessions auth.SessionStore
	tickets  auth.TicketService

	runner   SearchRunner
	store    jobs.Store
	connMgr  *push.ConnectionManager
	broker   *push.Broker
	limiter  ratelimit.Limiter
	photos   PhotoFetcher
	enricher *enrich.Service
	redis    *redis.Client // optional, debug endpoint only
}

// NewServer wires handlers and middleware. redis and enricher may be
// nil; the corresponding endpoints degrade gracefully.
func NewServer(
	cfg *config.Config,
	issuer *auth.TokenIssuer,
	sessions auth.SessionStore,
	tickets auth.TicketService,
	runner SearchRunner,
	store jobs.Store,
	connMgr *push.ConnectionManager,
	broker *push.Broker,
	limiter ratelimit.Limiter,
	photos PhotoFetcher,
	enricher *enrich.Service,
	redisClient *redis.Client,
) *Server {
	s := &Server{
		cfg:      cfg,
		echo:     echo.New(),
		issuer:   issuer,
		sessions: sessions,
		tickets:  tickets,
		runner:   runner,
		store:    store,
		connMgr:  connMgr,
		broker:   broker,
		limiter:  limiter,
		photos:   photos,
		enricher: enricher,
		redis:    redisClient,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())
	e.Use(corsMiddleware(s.cfg.FrontendOrigins))

	e.GET("/healthz", s.healthHandler)
	e.GET("/ws", s.wsHandler)

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/token", s.tokenHandler)
	authGroup.POST("/session", s.sessionHandler)
	authGroup.POST("/bootstrap", s.bootstrapHandler)
	authGroup.GET("/whoami", s.whoamiHandler)
	authGroup.POST("/ws-ticket", s.wsTicketHandler)

	v1.POST("/search", s.searchHandler)
	v1.GET("/search/:requestId/result", s.resultHandler)
	v1.GET("/stream/assistant/:requestId", s.streamAssistantHandler)
	v1.GET("/photos/places/:placeId/photos/:photoId", s.photosHandler)
	v1.GET("/debug/redis", s.debugRedisHandler)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the context budget.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
