// Package server assembles the gin engine for the classification daemon.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/internal/metrics"
	"github.com/themobileprof/textclass/internal/router"
	"github.com/themobileprof/textclass/internal/server/handler"
	"github.com/themobileprof/textclass/internal/server/middleware"
)

// Options holds the dependencies of the HTTP surface.
type Options struct {
	Classifier interfaces.Classifier
	Router     interfaces.Router // defaults to local-only routing
	Store      handler.Pinger    // optional
	Remote     handler.Pinger    // optional
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	RateLimit    int // requests per RateInterval per client IP; 0 disables
	RateInterval time.Duration
	MaxBatch     int
}

// Server is the configured gin engine plus the resources it owns.
type Server struct {
	Engine  *gin.Engine
	limiter *middleware.RateLimiter
}

// Setup creates and configures the Gin router
func Setup(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := opts.Router
	if rt == nil {
		rt = router.New(opts.Classifier, nil, logger)
	}

	engine := gin.New()
	s := &Server{Engine: engine}

	// Middleware
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(logger))
	engine.Use(middleware.Recovery(logger))
	if opts.Metrics != nil {
		engine.Use(opts.Metrics.Middleware())
	}

	// Health endpoints
	healthHandler := handler.NewHealthHandler(opts.Classifier, opts.Store, opts.Remote)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)

	// Prometheus metrics
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	classifyHandler := handler.NewClassifyHandler(opts.Classifier, rt, opts.MaxBatch)

	// API v1 routes
	v1 := engine.Group("/api/v1")
	if opts.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(opts.RateLimit, opts.RateInterval)
		v1.Use(s.limiter.Limit())
	}
	{
		v1.POST("/classify", classifyHandler.Classify)
		v1.POST("/classify/batch", classifyHandler.ClassifyBatch)
		v1.POST("/route", classifyHandler.Route)
	}

	return s
}

// Close stops background work started by Setup.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
