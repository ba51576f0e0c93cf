package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/themobileprof/textclass/pkg/models"
)

// SharedLibraryEnv names the environment variable consulted when no
// runtime library path is configured.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var errEngineClosed = errors.New("engine closed")

// ONNXOptions configures an ONNXEngine.
type ONNXOptions struct {
	ModelPath         string
	ModelConfigPath   string // config.json with id2label; empty skips the label check
	SharedLibraryPath string
	MaxLength         int
	PoolSize          int
	IntraOpThreads    int
}

// ONNXEngine scores inputs with ONNX Runtime. It keeps a fixed pool of
// sessions, each with its own pre-bound tensors, so concurrent calls never
// share buffers.
type ONNXEngine struct {
	modelPath  string
	outputName string
	maxLength  int
	poolSize   int
	sessions   chan *onnxSession
	done       chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

type onnxSession struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// NewONNXEngine loads the model and creates the session pool. Every
// failure is reported as models.ErrModelLoadFailed.
func NewONNXEngine(opts ONNXOptions) (*ONNXEngine, error) {
	if opts.MaxLength <= 0 {
		return nil, loadError(fmt.Errorf("max length must be positive, got %d", opts.MaxLength))
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize()
	}
	if opts.IntraOpThreads <= 0 {
		opts.IntraOpThreads = 2
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, loadError(fmt.Errorf("model not found at %s: %w", opts.ModelPath, err))
	}

	if opts.ModelConfigPath != "" {
		cfg, err := LoadModelConfig(opts.ModelConfigPath)
		if err != nil {
			return nil, loadError(err)
		}
		if err := cfg.VerifyLabels(); err != nil {
			return nil, loadError(fmt.Errorf("label order mismatch: %w", err))
		}
	}

	if err := acquireEnvironment(opts.SharedLibraryPath); err != nil {
		return nil, loadError(err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		_ = releaseEnvironment()
		return nil, loadError(fmt.Errorf("failed to inspect model: %w", err))
	}
	if err := checkInputs(inputs); err != nil {
		_ = releaseEnvironment()
		return nil, loadError(err)
	}
	outputName, err := selectLogitsOutput(outputs)
	if err != nil {
		_ = releaseEnvironment()
		return nil, loadError(err)
	}

	e := &ONNXEngine{
		modelPath:  opts.ModelPath,
		outputName: outputName,
		maxLength:  opts.MaxLength,
		poolSize:   opts.PoolSize,
		sessions:   make(chan *onnxSession, opts.PoolSize),
		done:       make(chan struct{}),
	}
	for i := 0; i < opts.PoolSize; i++ {
		s, err := newONNXSession(opts.ModelPath, outputName, opts.MaxLength, opts.IntraOpThreads)
		if err != nil {
			e.destroySessions(i)
			_ = releaseEnvironment()
			return nil, loadError(fmt.Errorf("failed to create session %d/%d: %w", i+1, opts.PoolSize, err))
		}
		e.sessions <- s
	}

	return e, nil
}

// DefaultPoolSize is one session per CPU, capped at 4.
func DefaultPoolSize() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Score runs the model. A call waits for a free session and gives up if
// ctx is done first; once the session starts running it completes.
func (e *ONNXEngine) Score(ctx context.Context, input models.TokenizedInput) (models.ScoreVector, error) {
	if e.closed.Load() {
		return nil, models.NewError(models.ErrInferenceFailed, "infer", errEngineClosed)
	}
	if len(input.IDs) != e.maxLength || len(input.Mask) != e.maxLength {
		return nil, models.NewError(models.ErrInferenceFailed, "infer",
			fmt.Errorf("input length %d/%d, model expects %d", len(input.IDs), len(input.Mask), e.maxLength))
	}

	var s *onnxSession
	select {
	case s = <-e.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, models.NewError(models.ErrInferenceFailed, "infer", errEngineClosed)
	}
	defer func() { e.sessions <- s }()

	copy(s.inputIDs.GetData(), input.IDs)
	copy(s.attentionMask.GetData(), input.Mask)

	if err := s.session.Run(); err != nil {
		return nil, models.NewError(models.ErrInferenceFailed, "infer", fmt.Errorf("onnx run: %w", err))
	}

	raw := s.output.GetData()
	scores := make(models.ScoreVector, len(raw))
	copy(scores, raw)
	return scores, nil
}

// ModelPath returns the loaded model file.
func (e *ONNXEngine) ModelPath() string {
	return e.modelPath
}

// OutputName returns the model output used as logits.
func (e *ONNXEngine) OutputName() string {
	return e.outputName
}

// PoolSize returns the number of sessions.
func (e *ONNXEngine) PoolSize() int {
	return e.poolSize
}

// Close waits for in-flight calls, destroys all sessions and releases the
// runtime environment. Later calls to Score fail.
func (e *ONNXEngine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
		e.destroySessions(e.poolSize)
		e.closeErr = releaseEnvironment()
	})
	return e.closeErr
}

func (e *ONNXEngine) destroySessions(n int) {
	for i := 0; i < n; i++ {
		s := <-e.sessions
		s.destroy()
	}
}

func newONNXSession(modelPath, outputName string, maxLength, intraThreads int) (*onnxSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if err := options.SetIntraOpNumThreads(intraThreads); err != nil {
		return nil, fmt.Errorf("failed to set threads: %w", err)
	}

	shape := ort.NewShape(1, int64(maxLength))
	inputIDs, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMask, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		_ = inputIDs.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(models.CategoryCount)))
	if err != nil {
		_ = inputIDs.Destroy()
		_ = attentionMask.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{outputName},
		[]ort.Value{inputIDs, attentionMask},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		_ = inputIDs.Destroy()
		_ = attentionMask.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxSession{
		session:       session,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		output:        output,
	}, nil
}

func (s *onnxSession) destroy() {
	_ = s.session.Destroy()
	_ = s.inputIDs.Destroy()
	_ = s.attentionMask.Destroy()
	_ = s.output.Destroy()
}

func checkInputs(inputs []ort.InputOutputInfo) error {
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	for _, name := range []string{"input_ids", "attention_mask"} {
		if !have[name] {
			return fmt.Errorf("model has no %s input (inputs: %s)", name, strings.Join(infoNames(inputs), ", "))
		}
	}
	return nil
}

// selectLogitsOutput picks the "logits" output, or the only output, and
// verifies its class dimension when the model declares it.
func selectLogitsOutput(outputs []ort.InputOutputInfo) (string, error) {
	if len(outputs) == 0 {
		return "", fmt.Errorf("model has no outputs")
	}
	var chosen *ort.InputOutputInfo
	for i := range outputs {
		if strings.EqualFold(outputs[i].Name, "logits") {
			chosen = &outputs[i]
			break
		}
	}
	if chosen == nil {
		if len(outputs) > 1 {
			return "", fmt.Errorf("multiple outputs without logits: %s", strings.Join(infoNames(outputs), ", "))
		}
		chosen = &outputs[0]
	}
	if err := checkClassDim(chosen.Dimensions); err != nil {
		return "", fmt.Errorf("output %s: %w", chosen.Name, err)
	}
	return chosen.Name, nil
}

// checkClassDim requires a fixed last dimension equal to the category count.
func checkClassDim(dims []int64) error {
	if len(dims) == 0 {
		return fmt.Errorf("output has no dimensions")
	}
	last := dims[len(dims)-1]
	if last <= 0 {
		return fmt.Errorf("output class dimension is dynamic (%d), want %d", last, models.CategoryCount)
	}
	if last != models.CategoryCount {
		return fmt.Errorf("model emits %d classes, registry has %d", last, models.CategoryCount)
	}
	return nil
}

func infoNames(infos []ort.InputOutputInfo) []string {
	names := make([]string, 0, len(infos))
	for _, in := range infos {
		names = append(names, in.Name)
	}
	return names
}

func loadError(err error) error {
	return models.NewError(models.ErrModelLoadFailed, "load", err)
}
