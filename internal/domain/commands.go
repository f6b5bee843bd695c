package domain

import (
	"fmt"
	"time"
)

// Command is a transition request against a task. The dispatcher and the
// sweeper never mutate task fields directly; every change goes through
// Apply with one of the fixed-shape commands below.
type Command interface {
	// Name returns the command identifier used in errors and logs.
	Name() string
}

// DispatchCmd moves a pending task into processing under the given provider.
type DispatchCmd struct {
	Provider string
}

// ProgressCmd records a milestone progress update on a processing task.
type ProgressCmd struct {
	Progress int
	Message  string
}

// CompleteCmd finishes a processing task successfully.
type CompleteCmd struct {
	Result Result
}

// FailCmd moves a processing task to FAILED with a terminal classification.
type FailCmd struct {
	Kind    ErrorKind
	Message string
}

// CancelCmd cancels a pending or processing task. Cancellation of a task
// mid-provider-call is advisory: the call runs to completion but its result
// is discarded.
type CancelCmd struct {
	Reason string
}

// TimeoutCmd moves an overdue task to TIMEOUT.
type TimeoutCmd struct {
	Message string
}

func (DispatchCmd) Name() string { return "dispatch" }
func (ProgressCmd) Name() string { return "progress" }
func (CompleteCmd) Name() string { return "complete" }
func (FailCmd) Name() string     { return "fail" }
func (CancelCmd) Name() string   { return "cancel" }
func (TimeoutCmd) Name() string  { return "timeout" }

// Apply executes a transition command against the task. It is a total
// function over (status, command): legal transitions mutate the task and
// append exactly one history entry; illegal ones return a typed error and
// leave the task untouched.
func (t *Task) Apply(cmd Command) error {
	return t.applyAt(cmd, time.Now().UTC())
}

func (t *Task) applyAt(cmd Command, now time.Time) error {
	switch c := cmd.(type) {
	case DispatchCmd:
		return t.dispatch(c, now)
	case ProgressCmd:
		return t.progress(c, now)
	case CompleteCmd:
		return t.complete(c, now)
	case FailCmd:
		return t.fail(c, now)
	case CancelCmd:
		return t.cancel(c, now)
	case TimeoutCmd:
		return t.timeout(c, now)
	default:
		return fmt.Errorf("%w: unknown command %T", ErrInvalidTransition, cmd)
	}
}

func (t *Task) dispatch(c DispatchCmd, now time.Time) error {
	if t.Status != StatusPending {
		return t.transitionError("dispatch", StatusProcessing)
	}
	t.Status = StatusProcessing
	t.Progress = 1
	t.Message = "dispatched"
	if c.Provider != "" {
		t.Provider = c.Provider
	}
	t.record(now)
	return nil
}

func (t *Task) progress(c ProgressCmd, now time.Time) error {
	if t.Status != StatusProcessing {
		return t.transitionError("progress", StatusProcessing)
	}
	if c.Progress < t.Progress {
		return fmt.Errorf("%w: %d -> %d", ErrProgressRegression, t.Progress, c.Progress)
	}
	if c.Progress >= 100 {
		// 100 is reserved for completion.
		return fmt.Errorf("%w: progress %d requires a complete command",
			ErrInvalidTransition, c.Progress)
	}
	t.Progress = c.Progress
	if c.Message != "" {
		t.Message = c.Message
	}
	if t.Progress > 0 {
		// estimated completion = now + elapsed * (100/progress - 1)
		elapsed := now.Sub(t.CreatedAt)
		remaining := time.Duration(float64(elapsed) * (100.0/float64(t.Progress) - 1.0))
		est := now.Add(remaining)
		t.EstimatedCompletionAt = &est
	}
	t.record(now)
	return nil
}

func (t *Task) complete(c CompleteCmd, now time.Time) error {
	if t.Status != StatusProcessing {
		return t.transitionError("complete", StatusCompleted)
	}
	t.Status = StatusCompleted
	t.Progress = 100
	t.Message = "completed"
	result := c.Result
	t.Result = &result
	t.CompletedAt = &now
	t.EstimatedCompletionAt = nil
	t.record(now)
	return nil
}

func (t *Task) fail(c FailCmd, now time.Time) error {
	if t.Status != StatusProcessing {
		return t.transitionError("fail", StatusFailed)
	}
	t.Status = StatusFailed
	t.Message = c.Message
	t.Error = &TaskError{Kind: c.Kind, Message: c.Message}
	t.FailedAt = &now
	t.EstimatedCompletionAt = nil
	t.record(now)
	return nil
}

func (t *Task) cancel(c CancelCmd, now time.Time) error {
	if t.Status.Terminal() {
		// A cancel against a terminal task is a no-op at the caller; the
		// typed error lets the caller distinguish it without history noise.
		return ErrTaskTerminal
	}
	if t.Status != StatusPending && t.Status != StatusProcessing {
		return t.transitionError("cancel", StatusCanceled)
	}
	t.Status = StatusCanceled
	if c.Reason != "" {
		t.Message = c.Reason
	} else {
		t.Message = "canceled"
	}
	t.Error = &TaskError{Kind: ErrorKindCanceled, Message: t.Message}
	t.CanceledAt = &now
	t.EstimatedCompletionAt = nil
	t.record(now)
	return nil
}

func (t *Task) timeout(c TimeoutCmd, now time.Time) error {
	if t.Status != StatusPending && t.Status != StatusProcessing {
		return t.transitionError("timeout", StatusTimeout)
	}
	t.Status = StatusTimeout
	if c.Message != "" {
		t.Message = c.Message
	} else {
		t.Message = "task timed out"
	}
	t.Error = &TaskError{Kind: ErrorKindTimeout, Message: t.Message}
	t.EstimatedCompletionAt = nil
	t.record(now)
	return nil
}

// record appends a history entry for the task's current state and bumps
// UpdatedAt. Every legal transition calls it exactly once.
func (t *Task) record(now time.Time) {
	t.UpdatedAt = now
	t.History = append(t.History, HistoryEntry{
		Time:     now,
		Status:   t.Status,
		Message:  t.Message,
		Progress: t.Progress,
	})
}

func (t *Task) transitionError(cmd string, target Status) error {
	if t.Status.Terminal() {
		return fmt.Errorf("%w: cannot %s task %s in status %s",
			ErrTaskTerminal, cmd, t.ID, t.Status)
	}
	return fmt.Errorf("%w: %s -> %s via %s", ErrInvalidTransition, t.Status, target, cmd)
}
