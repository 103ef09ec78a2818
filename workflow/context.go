package workflow

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Context is the per-callback execution context handed to a Handler. It is
// reconstructed from the orchestrator's request on every resume and is not
// safe for concurrent use.
type Context struct {
	ctx      context.Context
	runID    string
	payload  json.RawMessage
	log      []Checkpoint
	cursor   int
	appended []Checkpoint
	sleep    *SleepDirective
}

// NewContext builds a Context from a callback's run id, trigger payload,
// and checkpoint log
func NewContext(ctx context.Context, runID string, payload json.RawMessage, steps []Checkpoint) *Context {
	return &Context{
		ctx:     ctx,
		runID:   runID,
		payload: payload,
		log:     steps,
	}
}

// Context returns the request-scoped context for step functions
func (c *Context) Context() context.Context {
	return c.ctx
}

// RunID returns the orchestrator's identifier for this run
func (c *Context) RunID() string {
	return c.runID
}

// Payload decodes the trigger payload supplied once at trigger time
func (c *Context) Payload(v any) error {
	if len(c.payload) == 0 {
		return goerrors.New("workflow callback has no trigger payload", goerrors.CategoryBadInput)
	}
	if err := json.Unmarshal(c.payload, v); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode trigger payload")
	}
	return nil
}

// Run executes a checkpointed step at most once. If the step is already in
// the checkpoint log its recorded result is returned and fn is not called.
// A fn error propagates unrecorded, so the orchestrator retries the same
// step on the next callback.
func (c *Context) Run(step string, fn func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	if c.cursor < len(c.log) {
		cp := c.log[c.cursor]
		if cp.Step != step || cp.Kind != StepRun {
			return nil, driftError(step, cp)
		}
		c.cursor++
		return cp.Data, nil
	}

	out, err := fn(c.ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode step result").
			WithMetadata(map[string]any{"step": step})
	}

	cp := Checkpoint{Step: step, Kind: StepRun, Data: data}
	c.appended = append(c.appended, cp)
	c.cursor++
	return data, nil
}

// RunAs is Run with a typed result
func RunAs[T any](c *Context, step string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.Run(step, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode step result").
			WithMetadata(map[string]any{"step": step})
	}
	return out, nil
}

// Sleep suspends the run for a durable timer. When the timer has already
// fired (its checkpoint is in the log) Sleep is a no-op and execution
// continues past it. Otherwise it records the sleep, sets the directive for
// the orchestrator, and halts this callback by returning ErrSuspended,
// which the handler must propagate.
func (c *Context) Sleep(step string, d time.Duration) error {
	if c.cursor < len(c.log) {
		cp := c.log[c.cursor]
		if cp.Step != step || cp.Kind != StepSleep {
			return driftError(step, cp)
		}
		c.cursor++
		return nil
	}

	c.appended = append(c.appended, Checkpoint{Step: step, Kind: StepSleep})
	c.sleep = &SleepDirective{Step: step, DurationMS: durationMS(d)}
	return ErrSuspended
}

// Suspended reports whether the callback halted at a sleep
func (c *Context) Suspended() bool {
	return c.sleep != nil
}

// Response assembles the callback response for the orchestrator: the full
// updated checkpoint log plus the pending sleep directive, if any. The
// orchestrator stores the log verbatim and re-POSTs it on the next resume.
func (c *Context) Response(done bool) CallbackResponse {
	steps := make([]Checkpoint, 0, len(c.log)+len(c.appended))
	steps = append(steps, c.log...)
	steps = append(steps, c.appended...)

	return CallbackResponse{
		RunID: c.runID,
		Steps: steps,
		Sleep: c.sleep,
		Done:  done,
	}
}

func driftError(want string, got Checkpoint) error {
	return goerrors.Wrap(ErrCheckpointDrift, goerrors.CategoryConflict, "unexpected checkpoint").
		WithMetadata(map[string]any{
			"expected_step": want,
			"recorded_step": got.Step,
			"recorded_kind": got.Kind,
		})
}
