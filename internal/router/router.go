// Package router decides whether a request is handled with the local
// classification or deferred to the remote backend.
package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// ErrRemoteFailed is returned when a request needed the remote backend and
// the backend did not answer.
var ErrRemoteFailed = errors.New("remote fallback failed")

// Routing reasons.
const (
	ReasonConfident     = "confident"
	ReasonLowConfidence = "low_confidence"
	ReasonLocalFailure  = "local_failure"
	ReasonNoRemote      = "low_confidence_no_remote"
)

// Router routes on ShouldUseFallback and on retryable local failures
type Router struct {
	local   interfaces.Classifier
	remote  interfaces.RemoteClassifier
	logger  *zap.Logger
	onRoute func(source string)
}

var _ interfaces.Router = (*Router)(nil)

// New creates a router. remote may be nil, in which case low-confidence
// results are still returned locally, marked with ReasonNoRemote.
func New(local interfaces.Classifier, remote interfaces.RemoteClassifier, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{local: local, remote: remote, logger: logger}
}

// OnRoute registers a callback invoked with the source of every route.
func (r *Router) OnRoute(fn func(source string)) {
	r.onRoute = fn
}

// Route classifies text locally and defers to the remote backend when the
// result is not confident enough or local inference failed transiently.
// Empty input and contract violations are returned as errors unchanged.
func (r *Router) Route(ctx context.Context, requestID, text string) (*models.Route, error) {
	result, err := r.local.Classify(ctx, text)
	switch {
	case err == nil && !result.ShouldUseFallback:
		return r.done(&models.Route{Source: models.SourceLocal, Reason: ReasonConfident, Local: result}), nil
	case err == nil && r.remote == nil:
		return r.done(&models.Route{Source: models.SourceLocal, Reason: ReasonNoRemote, Local: result}), nil
	case err == nil:
		return r.viaRemote(ctx, requestID, text, ReasonLowConfidence, result)
	case models.IsRetryable(err) && r.remote != nil:
		r.logger.Warn("local inference failed, deferring to remote",
			zap.String("request_id", requestID), zap.Error(err))
		return r.viaRemote(ctx, requestID, text, ReasonLocalFailure, nil)
	default:
		return nil, err
	}
}

func (r *Router) viaRemote(ctx context.Context, requestID, text, reason string, local *models.ClassificationResult) (*models.Route, error) {
	remote, err := r.remote.Classify(ctx, requestID, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFailed, err)
	}
	return r.done(&models.Route{Source: models.SourceRemote, Reason: reason, Local: local, Remote: remote}), nil
}

func (r *Router) done(route *models.Route) *models.Route {
	if r.onRoute != nil {
		r.onRoute(route.Source)
	}
	return route
}
