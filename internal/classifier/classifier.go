// Package classifier wires the tokenizer, tensor builder, model, softmax
// and decision engine into the text classification pipeline.
//
// A Classifier is built once at startup and shared. It holds no mutable
// state after construction; every call allocates its own tensors and
// vectors, so concurrent calls need no locking.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/themobileprof/textclass/internal/config"
	"github.com/themobileprof/textclass/internal/decision"
	"github.com/themobileprof/textclass/internal/inference"
	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/internal/scoring"
	"github.com/themobileprof/textclass/internal/tensor"
	"github.com/themobileprof/textclass/internal/tokenizer"
	"github.com/themobileprof/textclass/pkg/models"
)

// Classifier runs the classification pipeline.
type Classifier struct {
	tokenizer  interfaces.Tokenizer
	builder    *tensor.Builder
	scorer     inference.Scorer
	decider    *decision.Engine
	observers  []interfaces.Observer
	logger     *zap.Logger
	batchLimit int
}

var _ interfaces.Classifier = (*Classifier)(nil)

type options struct {
	maxLength  int
	threshold  float64
	batchLimit int
	observers  []interfaces.Observer
	logger     *zap.Logger
}

// Option configures a Classifier.
type Option func(*options)

// WithThreshold sets the fallback confidence threshold.
func WithThreshold(threshold float64) Option {
	return func(o *options) { o.threshold = threshold }
}

// WithMaxLength sets the fixed sequence length fed to the model.
func WithMaxLength(n int) Option {
	return func(o *options) { o.maxLength = n }
}

// WithBatchLimit caps how many batch items run at once.
func WithBatchLimit(n int) Option {
	return func(o *options) { o.batchLimit = n }
}

// WithObserver registers an observer for every finished call.
func WithObserver(obs interfaces.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New assembles a Classifier from an already loaded tokenizer and scorer.
func New(tok interfaces.Tokenizer, scorer inference.Scorer, opts ...Option) (*Classifier, error) {
	if tok == nil {
		return nil, models.NewError(models.ErrTokenizerUnavailable, "load", errors.New("no tokenizer"))
	}
	if scorer == nil {
		return nil, models.NewError(models.ErrModelLoadFailed, "load", errors.New("no scorer"))
	}

	o := options{
		maxLength:  tensor.DefaultMaxLength,
		threshold:  models.DefaultFallbackThreshold,
		batchLimit: 4,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchLimit < 1 {
		o.batchLimit = 1
	}

	builder, err := tensor.NewBuilder(o.maxLength)
	if err != nil {
		return nil, err
	}
	decider, err := decision.NewEngine(o.threshold)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		tokenizer:  tok,
		builder:    builder,
		scorer:     scorer,
		decider:    decider,
		observers:  o.observers,
		logger:     o.logger,
		batchLimit: o.batchLimit,
	}, nil
}

// Load reads the vocabulary, then the model, and assembles a Classifier.
// Either failure is a construction error and no Classifier is returned.
func Load(cfg config.ModelConfig, threshold float64, opts ...Option) (*Classifier, error) {
	tok, err := tokenizer.LoadWordPiece(cfg.VocabPath())
	if err != nil {
		return nil, err
	}

	engine, err := inference.NewONNXEngine(inference.ONNXOptions{
		ModelPath:         cfg.ModelPath(),
		ModelConfigPath:   cfg.LabelConfigPath(),
		SharedLibraryPath: cfg.SharedLibrary,
		MaxLength:         cfg.MaxLength,
		PoolSize:          cfg.SessionPool,
		IntraOpThreads:    cfg.IntraOpThreads,
	})
	if err != nil {
		return nil, err
	}

	base := []Option{WithMaxLength(cfg.MaxLength), WithThreshold(threshold)}
	if cfg.BatchWorkers > 0 {
		base = append(base, WithBatchLimit(cfg.BatchWorkers))
	}
	c, err := New(tok, engine, append(base, opts...)...)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	c.logger.Info("classifier loaded",
		zap.String("model", engine.ModelPath()),
		zap.String("output", engine.OutputName()),
		zap.Int("vocab_size", tok.VocabSize()),
		zap.Int("sessions", engine.PoolSize()),
		zap.Int("max_length", cfg.MaxLength),
		zap.Float64("threshold", threshold),
	)
	return c, nil
}

// Threshold returns the fallback threshold in use.
func (c *Classifier) Threshold() float64 {
	return c.decider.Threshold()
}

// MaxLength returns the model sequence length.
func (c *Classifier) MaxLength() int {
	return c.builder.MaxLength()
}

// Classify runs text through the pipeline. A context that is already done
// returns its error without starting; once started the call runs to a
// result or a *models.ClassificationError.
func (c *Classifier) Classify(ctx context.Context, text string) (*models.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &models.CallRecord{
		RequestID: RequestIDFromContext(ctx),
		Text:      text,
		Started:   time.Now(),
		Stages:    make([]models.Stage, 0, 5),
	}
	result, err := c.run(ctx, text, rec)
	rec.Total = time.Since(rec.Started)
	rec.Result, rec.Err = result, err

	c.notify(ctx, rec)
	return result, err
}

func (c *Classifier) run(ctx context.Context, text string, rec *models.CallRecord) (*models.ClassificationResult, error) {
	stage := func(name string, start time.Time) {
		rec.Stages = append(rec.Stages, models.Stage{Name: name, Duration: time.Since(start)})
	}

	start := time.Now()
	tokens, err := c.tokenizer.Tokenize(text)
	stage(models.StageTokenize, start)
	if err != nil {
		// a tokenizer that loaded but failed on this input is a per-call failure
		if models.KindOf(err) == nil {
			err = models.NewError(models.ErrInferenceFailed, models.StageTokenize, err)
		}
		return nil, err
	}
	rec.Tokens = len(tokens)

	start = time.Now()
	input := c.builder.Build(tokens)
	stage(models.StageTensor, start)

	start = time.Now()
	scores, err := c.scorer.Score(ctx, input)
	stage(models.StageInfer, start)
	if err != nil {
		if models.KindOf(err) == nil && !isContextErr(err) {
			err = models.NewError(models.ErrInferenceFailed, models.StageInfer, err)
		}
		return nil, err
	}
	if len(scores) != models.CategoryCount {
		return nil, models.NewError(models.ErrInvalidScoreVector, models.StageInfer,
			fmt.Errorf("model returned %d scores, want %d", len(scores), models.CategoryCount))
	}

	start = time.Now()
	probs, err := scoring.Normalize(scores)
	stage(models.StageNormalize, start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	result, err := c.decider.Decide(probs)
	stage(models.StageDecide, start)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClassifyBatch classifies each text independently. The returned slices
// are index-aligned with texts; one item failing never affects another.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts []string) ([]*models.ClassificationResult, []error) {
	results := make([]*models.ClassificationResult, len(texts))
	errs := make([]error, len(texts))

	var g errgroup.Group
	g.SetLimit(c.batchLimit)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			results[i], errs[i] = c.Classify(ctx, text)
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// Close releases the scorer's native resources, if it holds any.
func (c *Classifier) Close() error {
	if closer, ok := c.scorer.(inference.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Classifier) notify(ctx context.Context, rec *models.CallRecord) {
	if rec.Err != nil && !models.IsRetryable(rec.Err) && !errors.Is(rec.Err, models.ErrEmptyInput) && !isContextErr(rec.Err) {
		c.logger.Error("classification failed",
			zap.String("request_id", rec.RequestID),
			zap.Error(rec.Err),
		)
	} else if rec.Err != nil {
		c.logger.Debug("classification failed",
			zap.String("request_id", rec.RequestID),
			zap.Error(rec.Err),
		)
	}

	if len(c.observers) == 0 {
		return
	}
	octx := context.WithoutCancel(ctx)
	for _, obs := range c.observers {
		obs.Observe(octx, rec)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
