// Command textclassd serves the classifier over HTTP.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/classifier"
	"github.com/themobileprof/textclass/internal/config"
	"github.com/themobileprof/textclass/internal/db"
	"github.com/themobileprof/textclass/internal/fallback"
	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/internal/logger"
	"github.com/themobileprof/textclass/internal/metrics"
	"github.com/themobileprof/textclass/internal/router"
	"github.com/themobileprof/textclass/internal/server"
	"github.com/themobileprof/textclass/internal/trace"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.GetConfigPath(), "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional KEY=VALUE file loaded before TEXTCLASS_* overrides")
	flag.Parse()

	loadEnvFile(*envFile)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(config.NewViper())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	m := metrics.New()
	opts := []classifier.Option{classifier.WithLogger(log), classifier.WithObserver(m)}

	// Decision log (optional)
	var store *db.DB
	if cfg.LogDecisions {
		store, err = db.New(cfg.DBPath, log)
		if err != nil {
			return fmt.Errorf("failed to open decision log: %w", err)
		}
		defer store.Close()
		opts = append(opts, classifier.WithObserver(store))
		log.Info("Decision log enabled", zap.String("path", store.Path()))
	}

	// Stage trace (optional)
	if cfg.TracePath != "" {
		tl, err := trace.New(cfg.TracePath, trace.WithRedaction(), trace.WithLogger(log))
		if err != nil {
			return err
		}
		defer tl.Close()
		opts = append(opts, classifier.WithObserver(tl))
	}

	c, err := classifier.Load(cfg.Model, cfg.Thresholds.Fallback, opts...)
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	defer c.Close()

	// Remote fallback (optional)
	var remote interfaces.RemoteClassifier
	if cfg.Fallback.Enabled() {
		client, err := fallback.New(cfg.Fallback, log)
		if err != nil {
			return fmt.Errorf("failed to create fallback client: %w", err)
		}
		remote = client
		log.Info("Remote fallback enabled", zap.String("endpoint", cfg.Fallback.Endpoint))
	} else {
		log.Info("Remote fallback not configured; low-confidence results stay local")
	}

	rt := router.New(c, remote, log)
	rt.OnRoute(m.ObserveRoute)

	serverOpts := server.Options{
		Classifier:   c,
		Router:       rt,
		Metrics:      m,
		Logger:       log,
		RateLimit:    cfg.Server.RateLimit,
		RateInterval: cfg.Server.RateInterval,
	}
	if store != nil {
		serverOpts.Store = store
	}
	if remote != nil {
		serverOpts.Remote = remote
	}
	s := server.Setup(serverOpts)
	defer s.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.String("version", version),
			zap.Float64("threshold", c.Threshold()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// loadEnvFile loads KEY=VALUE lines into the environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}
