package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T) *Task {
	t.Helper()
	task, err := NewTask(42, "dall-e", map[string]any{"size": "1024x1024"}, PriorityNormal,
		&MintRequest{Breed: "Tabby"}, 2*time.Minute)
	require.NoError(t, err)
	return task
}

func TestNewTaskID(t *testing.T) {
	id := NewTaskID()
	assert.True(t, ValidTaskID(id), "generated id %q must match the task id shape", id)

	// Two ids generated back to back must differ.
	assert.NotEqual(t, id, NewTaskID())
}

func TestValidTaskID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"well formed", "task_1714000000000_0123456789abcdef", true},
		{"empty", "", false},
		{"missing prefix", "1714000000000_0123456789abcdef", false},
		{"short hex", "task_1714000000000_abcdef", false},
		{"uppercase hex", "task_1714000000000_0123456789ABCDEF", false},
		{"injection attempt", "task_1_0123456789abcdef; DROP TABLE tasks", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTaskID(tt.id))
		})
	}
}

func TestNewTask(t *testing.T) {
	task := newTestTask(t)

	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, int64(42), task.TokenID)
	require.Len(t, task.History, 1)
	assert.Equal(t, StatusPending, task.History[0].Status)
	require.NotNil(t, task.TimeoutAt)
	assert.True(t, task.TimeoutAt.After(task.CreatedAt))
	require.NoError(t, task.Validate())
}

func TestNewTaskRejectsNegativeToken(t *testing.T) {
	_, err := NewTask(-1, "dall-e", nil, PriorityNormal, nil, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidTokenID)
}

func TestNewTaskZeroTimeoutExpiresImmediately(t *testing.T) {
	task, err := NewTask(7, "dall-e", nil, PriorityNormal, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, task.TimeoutAt)
	assert.True(t, task.Expired(task.CreatedAt.Add(time.Millisecond)))
}

func TestDispatchTransition(t *testing.T) {
	task := newTestTask(t)

	require.NoError(t, task.Apply(DispatchCmd{Provider: "dall-e"}))
	assert.Equal(t, StatusProcessing, task.Status)
	assert.Equal(t, 1, task.Progress)
	assert.Equal(t, "dispatched", task.Message)
	assert.Len(t, task.History, 2)

	// Dispatching twice is illegal.
	err := task.Apply(DispatchCmd{Provider: "dall-e"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProgressUpdates(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{Provider: "dall-e"}))

	for _, p := range []int{20, 50, 80} {
		require.NoError(t, task.Apply(ProgressCmd{Progress: p, Message: "working"}))
		assert.Equal(t, p, task.Progress)
	}

	// Each progress-only update appends one history entry:
	// queued + dispatched + three milestones.
	assert.Len(t, task.History, 5)
	require.NotNil(t, task.EstimatedCompletionAt)
	assert.True(t, task.EstimatedCompletionAt.After(task.CreatedAt))
}

func TestProgressIsMonotonic(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{}))
	require.NoError(t, task.Apply(ProgressCmd{Progress: 50}))

	err := task.Apply(ProgressCmd{Progress: 20})
	assert.ErrorIs(t, err, ErrProgressRegression)
	assert.Equal(t, 50, task.Progress)
}

func TestProgressCannotReachHundred(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{}))

	err := task.Apply(ProgressCmd{Progress: 100})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEstimatedCompletionFormula(t *testing.T) {
	task := newTestTask(t)
	start := task.CreatedAt
	require.NoError(t, task.applyAt(DispatchCmd{}, start.Add(time.Second)))

	// At 25% after 10s elapsed, the remaining estimate is 30s.
	now := start.Add(10 * time.Second)
	require.NoError(t, task.applyAt(ProgressCmd{Progress: 25}, now))
	require.NotNil(t, task.EstimatedCompletionAt)
	assert.WithinDuration(t, now.Add(30*time.Second), *task.EstimatedCompletionAt, time.Millisecond)
}

func TestCompleteTransition(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{Provider: "dall-e"}))
	require.NoError(t, task.Apply(ProgressCmd{Progress: 90, Message: "finalizing mint"}))

	result := Result{TokenURI: "ipfs://QmArtifact/42.json", ProviderUsed: "dall-e", DurationMs: 1500}
	require.NoError(t, task.Apply(CompleteCmd{Result: result}))

	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.Result)
	assert.Equal(t, result, *task.Result)
	assert.NotNil(t, task.CompletedAt)
	assert.Nil(t, task.EstimatedCompletionAt)
	require.NoError(t, task.Validate())
}

func TestCompleteRequiresProcessing(t *testing.T) {
	task := newTestTask(t)
	err := task.Apply(CompleteCmd{Result: Result{TokenURI: "ipfs://x"}})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFailTransition(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{}))
	require.NoError(t, task.Apply(FailCmd{Kind: ErrorKindProviderExhausted, Message: "all providers failed"}))

	assert.Equal(t, StatusFailed, task.Status)
	require.NotNil(t, task.Error)
	assert.Equal(t, ErrorKindProviderExhausted, task.Error.Kind)
	assert.NotNil(t, task.FailedAt)
}

func TestCancelFromPendingAndProcessing(t *testing.T) {
	pending := newTestTask(t)
	require.NoError(t, pending.Apply(CancelCmd{Reason: "user request"}))
	assert.Equal(t, StatusCanceled, pending.Status)
	assert.NotNil(t, pending.CanceledAt)

	processing := newTestTask(t)
	require.NoError(t, processing.Apply(DispatchCmd{}))
	require.NoError(t, processing.Apply(CancelCmd{}))
	assert.Equal(t, StatusCanceled, processing.Status)
}

func TestCancelTerminalIsNoOp(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{}))
	require.NoError(t, task.Apply(CompleteCmd{Result: Result{TokenURI: "ipfs://x"}}))

	historyLen := len(task.History)
	err := task.Apply(CancelCmd{Reason: "too late"})
	assert.ErrorIs(t, err, ErrTaskTerminal)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Len(t, task.History, historyLen, "no history entry for a no-op cancel")
}

func TestTimeoutTransition(t *testing.T) {
	// Timeout is legal from both PENDING and PROCESSING.
	pending := newTestTask(t)
	require.NoError(t, pending.Apply(TimeoutCmd{Message: "task timed out after 500ms"}))
	assert.Equal(t, StatusTimeout, pending.Status)
	require.NotNil(t, pending.Error)
	assert.Equal(t, ErrorKindTimeout, pending.Error.Kind)

	processing := newTestTask(t)
	require.NoError(t, processing.Apply(DispatchCmd{}))
	require.NoError(t, processing.Apply(TimeoutCmd{}))
	assert.Equal(t, StatusTimeout, processing.Status)
	assert.Contains(t, processing.History[len(processing.History)-1].Message, "timed out")
}

func TestTerminalStatusesRejectAllCommands(t *testing.T) {
	terminalStates := []func(*Task){
		func(task *Task) {
			_ = task.Apply(DispatchCmd{})
			_ = task.Apply(CompleteCmd{Result: Result{TokenURI: "ipfs://x"}})
		},
		func(task *Task) {
			_ = task.Apply(DispatchCmd{})
			_ = task.Apply(FailCmd{Kind: ErrorKindChainFinalize, Message: "revert"})
		},
		func(task *Task) { _ = task.Apply(CancelCmd{}) },
		func(task *Task) { _ = task.Apply(TimeoutCmd{}) },
	}

	for _, reach := range terminalStates {
		task := newTestTask(t)
		reach(task)
		require.True(t, task.Status.Terminal())

		history := len(task.History)
		assert.Error(t, task.Apply(DispatchCmd{}))
		assert.Error(t, task.Apply(ProgressCmd{Progress: 99}))
		assert.Error(t, task.Apply(TimeoutCmd{}))
		assert.Len(t, task.History, history, "illegal commands must not touch history")
	}
}

func TestHistoryIsMonotonicInTime(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Apply(DispatchCmd{}))
	require.NoError(t, task.Apply(ProgressCmd{Progress: 20}))
	require.NoError(t, task.Apply(ProgressCmd{Progress: 80}))
	require.NoError(t, task.Apply(CompleteCmd{Result: Result{TokenURI: "ipfs://x"}}))

	for i := 1; i < len(task.History); i++ {
		assert.False(t, task.History[i].Time.Before(task.History[i-1].Time))
	}
}

func TestValidateCatchesProgressStatusMismatch(t *testing.T) {
	task := newTestTask(t)
	task.Progress = 100 // status still PENDING
	assert.ErrorIs(t, task.Validate(), ErrValidation)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.Equal(t, PriorityNormal.Rank(), Priority("bogus").Rank())
}
