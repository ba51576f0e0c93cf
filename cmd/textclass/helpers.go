package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/classifier"
	"github.com/themobileprof/textclass/internal/config"
	"github.com/themobileprof/textclass/internal/db"
	"github.com/themobileprof/textclass/internal/trace"
)

// loadClassifier loads the model and attaches the decision log and trace
// observers the config asks for. The returned cleanup closes all of them.
func loadClassifier(cfg *config.Config, log *zap.Logger) (*classifier.Classifier, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("cleanup failed", zap.Error(err))
			}
		}
	}

	opts := []classifier.Option{classifier.WithLogger(log)}

	if cfg.LogDecisions {
		store, err := db.New(cfg.DBPath, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open decision log: %w", err)
		}
		closers = append(closers, store.Close)
		opts = append(opts, classifier.WithObserver(store))
	}

	if cfg.TracePath != "" {
		tl, err := trace.New(cfg.TracePath, trace.WithLogger(log))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, tl.Close)
		opts = append(opts, classifier.WithObserver(tl))
	}

	c, err := classifier.Load(cfg.Model, cfg.Thresholds.Fallback, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	closers = append(closers, c.Close)

	return c, cleanup, nil
}
