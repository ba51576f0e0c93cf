// Package trace appends one JSON line per classification call, recording
// how long each pipeline stage took.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// Journey is one line of the trace file
type Journey struct {
	Timestamp  time.Time                    `json:"timestamp"`
	RequestID  string                       `json:"request_id,omitempty"`
	Query      string                       `json:"query"`
	Tokens     int                          `json:"tokens"`
	Steps      []Step                       `json:"steps"`
	DurationUs int64                        `json:"duration_us"`
	Result     *models.ClassificationResult `json:"result,omitempty"`
	Outcome    string                       `json:"outcome"`
	Error      string                       `json:"error,omitempty"`
}

// Step is one pipeline stage
type Step struct {
	Stage      string `json:"stage"`
	DurationUs int64  `json:"duration_us"`
}

// Logger writes journeys to a JSONL file
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	redact bool
	log    *zap.Logger
}

var _ interfaces.Observer = (*Logger)(nil)

// Option configures a Logger
type Option func(*Logger)

// WithRedaction replaces the input text with its length
func WithRedaction() Option {
	return func(l *Logger) { l.redact = true }
}

// WithLogger reports write failures to logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Logger) { l.log = logger }
}

// New opens path for appending, creating it and its directory if needed
func New(path string, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	l := &Logger{file: f, path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the trace file location
func (l *Logger) Path() string {
	return l.path
}

// Observe appends rec as one JSON line
func (l *Logger) Observe(_ context.Context, rec *models.CallRecord) {
	j := Journey{
		Timestamp:  rec.Started,
		RequestID:  rec.RequestID,
		Query:      rec.Text,
		Tokens:     rec.Tokens,
		Steps:      make([]Step, 0, len(rec.Stages)),
		DurationUs: rec.Total.Microseconds(),
		Result:     rec.Result,
		Outcome:    rec.Outcome(),
	}
	if l.redact {
		j.Query = fmt.Sprintf("<%d chars>", len([]rune(rec.Text)))
	}
	for _, s := range rec.Stages {
		j.Steps = append(j.Steps, Step{Stage: s.Name, DurationUs: s.Duration.Microseconds()})
	}
	if rec.Err != nil {
		j.Error = rec.Err.Error()
	}

	data, err := json.Marshal(j)
	if err != nil {
		l.log.Warn("failed to encode trace", zap.Error(err))
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	if _, err := l.file.Write(data); err != nil {
		l.log.Warn("failed to write trace", zap.String("path", l.path), zap.Error(err))
	}
}

// Close flushes and closes the file. Later observations are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Read parses a trace file, for inspection and tests
func Read(path string) ([]Journey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	var out []Journey
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var j Journey
		if err := dec.Decode(&j); err != nil {
			return nil, fmt.Errorf("failed to parse trace line %d: %w", len(out)+1, err)
		}
		out = append(out, j)
	}
	return out, nil
}
