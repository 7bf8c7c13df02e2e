// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the engine over HTTP under /api/v1.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/metric"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
)

// Deps are the components served by the API.
type Deps struct {
	Auctions *auction.Engine
	Schedule *schedule.Allocator
	Sprints  *sprint.Controller
	Ledger   *ledger.Ledger
	Ads      ads.Store
}

// Server holds the HTTP handlers.
type Server struct {
	auctions *auction.Engine
	schedule *schedule.Allocator
	sprints  *sprint.Controller
	ledger   *ledger.Ledger
	ads      ads.Store

	clock    clock.Clock
	loc      *time.Location
	log      log.Logger
	metrics  *metric.Metrics
	origins  []string
	release  bool
	tick     time.Duration
	upgrader websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Server)

func WithClock(c clock.Clock) Option         { return func(s *Server) { s.clock = c } }
func WithLogger(l log.Logger) Option         { return func(s *Server) { s.log = l } }
func WithMetrics(m *metric.Metrics) Option   { return func(s *Server) { s.metrics = m } }
func WithLocation(loc *time.Location) Option { return func(s *Server) { s.loc = loc } }

// WithCORSOrigins restricts cross-origin requests. "*" allows every origin.
func WithCORSOrigins(origins []string) Option { return func(s *Server) { s.origins = origins } }

// WithReleaseMode turns off gin's debug output.
func WithReleaseMode(release bool) Option { return func(s *Server) { s.release = release } }

// WithClockInterval sets how often the clock stream pushes a frame.
func WithClockInterval(d time.Duration) Option { return func(s *Server) { s.tick = d } }

func New(d Deps, opts ...Option) *Server {
	s := &Server{
		auctions: d.Auctions,
		schedule: d.Schedule,
		sprints:  d.Sprints,
		ledger:   d.Ledger,
		ads:      d.Ads,
		clock:    clock.Real,
		loc:      time.UTC,
		log:      log.NoOp(),
		origins:  []string{"*"},
		tick:     time.Second,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Close ends open clock streams. http.Server.Shutdown does not touch
// hijacked connections, so register it with RegisterOnShutdown.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler builds the gin engine with every route mounted.
func (s *Server) Handler() *gin.Engine {
	if s.release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), s.instrument(), cors.New(s.corsConfig()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": s.clock.Now().Unix()})
	})

	api := router.Group("/api/v1", identity())
	{
		api.GET("/slots", s.listSlots)
		api.POST("/slots/:id/bids", requireRole(RoleAdvertiser), s.placeBid)
		api.GET("/resolved-ad", s.resolvedAd)
		api.POST("/views", requireRole(RoleUser), s.recordView)
		api.GET("/sprints/current", s.currentSprint)
		api.GET("/sprints/next", s.nextSprint)
		api.GET("/sprints/:id/status", s.sprintStatus)
		api.GET("/sprints/:id/result", s.raffleResult)
		api.GET("/me/account", requireRole(RoleUser), s.account)
		api.POST("/ads", requireRole(RoleAdvertiser), s.createAd)
		api.GET("/ads", requireRole(RoleAdvertiser), s.listAds)
		api.PUT("/schedule-entries/:id/ad", requireRole(RoleAdvertiser), s.attachAd)
		api.GET("/ws/clock", s.clockStream)
	}

	admin := api.Group("/admin", requireRole(RoleAdmin))
	{
		admin.POST("/schedule-entries", s.createEntry)
		admin.GET("/schedule-entries", s.listEntries)
		admin.DELETE("/schedule-entries/:id", s.deleteEntry)
		admin.POST("/ads/:id/review", s.reviewAd)
		admin.POST("/advertisers", s.createAdvertiser)
		admin.POST("/sprints", s.createSprint)
		admin.POST("/sprints/plan", s.planSprints)
		admin.POST("/raffles", s.applyRaffle)
		admin.POST("/slots/:id/award", s.awardSlot)
		admin.POST("/slots/generate", s.generateSlots)
	}

	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(s.origins) == 0 || (len(s.origins) == 1 && s.origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderUserID, HeaderUserRole, HeaderIdempotencyKey}
	return cfg
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
