// Package workflow adapts durable, checkpointed execution over an external
// orchestration service.
//
// A workflow is a handler invoked repeatedly as an HTTP endpoint by the
// orchestrator, once per resumed step. Completed steps and sleeps are
// recorded as checkpoints that travel with each callback, so a handler
// replays deterministically: steps already in the checkpoint log return
// their recorded result without re-executing, and only the first
// unfinished step runs. A sleep suspends the callback entirely; no thread
// or connection is held while the orchestrator waits out the timer.
package workflow

import (
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// StepKind discriminates checkpoint entries
type StepKind string

const (
	// StepRun is a checkpointed unit of work with a recorded result
	StepRun StepKind = "run"
	// StepSleep is a completed durable timer
	StepSleep StepKind = "sleep"
)

// Checkpoint records the completion of a single step. For StepRun entries
// Data holds the step's JSON-encoded result; replaying the step returns
// this value instead of executing again.
type Checkpoint struct {
	Step string          `json:"step"`
	Kind StepKind        `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RunHandle identifies a triggered workflow run
type RunHandle struct {
	RunID string `json:"workflow_run_id"`
}

// SleepDirective tells the orchestrator to hold the checkpoint log and call
// back after the duration elapses
type SleepDirective struct {
	Step       string `json:"step"`
	DurationMS int64  `json:"duration_ms"`
}

// CallbackRequest is what the orchestrator POSTs to the workflow endpoint
// on every trigger and resume
type CallbackRequest struct {
	RunID   string          `json:"run_id"`
	Payload json.RawMessage `json:"payload"`
	Steps   []Checkpoint    `json:"steps,omitempty"`
}

// CallbackResponse carries the updated checkpoint log back to the
// orchestrator, plus either a sleep directive or a completion flag
type CallbackResponse struct {
	RunID string          `json:"run_id"`
	Steps []Checkpoint    `json:"steps"`
	Sleep *SleepDirective `json:"sleep,omitempty"`
	Done  bool            `json:"done,omitempty"`
}

// Handler is a workflow definition. Step errors must propagate out of the
// handler so the orchestrator's retry policy can engage; the handler itself
// performs no retries.
type Handler func(c *Context) error

// ErrSuspended is the control-flow sentinel returned through the handler
// when a sleep suspends execution. It is not a failure.
var ErrSuspended = goerrors.New("workflow suspended for durable sleep", goerrors.CategoryOperation).
	WithTextCode("WORKFLOW_SUSPENDED")

// ErrCheckpointDrift means the checkpoint log does not line up with the
// handler's step sequence, usually a deploy that reordered steps under a
// live run
var ErrCheckpointDrift = goerrors.New("checkpoint log does not match workflow definition", goerrors.CategoryConflict).
	WithTextCode("WORKFLOW_CHECKPOINT_DRIFT")

// Durations the package deals in are wall-clock; the orchestrator owns the
// actual timer.
func durationMS(d time.Duration) int64 {
	return d.Milliseconds()
}

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
