package models

import (
	"encoding/json"
	"time"
)

// Pipeline stage names, in execution order.
const (
	StageTokenize  = "tokenize"
	StageTensor    = "tensor"
	StageInfer     = "infer"
	StageNormalize = "normalize"
	StageDecide    = "decide"
)

// Stage records how long one pipeline stage took.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// CallRecord describes one finished classification call. It is built by the
// pipeline and handed to observers after the call returns; observers must
// not retain Result beyond the call.
type CallRecord struct {
	RequestID string                `json:"request_id,omitempty"`
	Text      string                `json:"text"`
	Started   time.Time             `json:"started"`
	Total     time.Duration         `json:"total_ns"`
	Tokens    int                   `json:"tokens"`
	Stages    []Stage               `json:"stages"`
	Result    *ClassificationResult `json:"result,omitempty"`
	Err       error                 `json:"-"`
}

// Outcome summarises the record as "local", "fallback", or the failed
// error kind.
func (r *CallRecord) Outcome() string {
	switch {
	case r.Err != nil:
		if kind := KindOf(r.Err); kind != nil {
			return kind.Error()
		}
		return "error"
	case r.Result == nil:
		return "error"
	case r.Result.ShouldUseFallback:
		return "fallback"
	default:
		return "local"
	}
}

// Route sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// RemoteResult is the remote backend's answer to a deferred request.
type RemoteResult struct {
	Category string          `json:"category,omitempty"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Route is the outcome of deciding where a request is handled.
type Route struct {
	Source string                `json:"source"`
	Reason string                `json:"reason"`
	Local  *ClassificationResult `json:"local,omitempty"`
	Remote *RemoteResult         `json:"remote,omitempty"`
}

// DecisionEntry is one row of the persisted decision log.
type DecisionEntry struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Input      string    `json:"input"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	Fallback   bool      `json:"fallback"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
