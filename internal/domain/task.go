package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// Status represents the current state of a mint task.
type Status string

// Possible task status values. StatusUnknown is synthetic: it is returned
// for lookups that miss and is never stored.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
	StatusTimeout    Status = "TIMEOUT"
	StatusUnknown    Status = "UNKNOWN"
)

// Terminal reports whether the status is final. A task in a terminal status
// is immutable except for cleanup.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusTimeout:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a storable member of the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusCanceled, StatusTimeout:
		return true
	default:
		return false
	}
}

// Priority orders work items within the mint queue. It is a dispatcher
// tie-breaker only and carries no other semantics.
type Priority string

// Possible priority values.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Rank returns the drain order of the priority band; lower drains first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// ErrorKind classifies a terminal task error.
type ErrorKind string

// Possible terminal error classifications.
const (
	ErrorKindValidation        ErrorKind = "VALIDATION"
	ErrorKindProviderExhausted ErrorKind = "PROVIDER_EXHAUSTED"
	ErrorKindChainFinalize     ErrorKind = "CHAIN_FINALIZE"
	ErrorKindTimeout           ErrorKind = "TIMEOUT"
	ErrorKindCanceled          ErrorKind = "CANCELED"
)

// HistoryEntry is one append-only record of a task transition or progress
// update. Entries are never rewritten.
type HistoryEntry struct {
	Time     time.Time `json:"time"`
	Status   Status    `json:"status"`
	Message  string    `json:"message"`
	Progress int       `json:"progress"`
}

// Result holds the successful outcome of a task. BlockNumber is the block
// the finalizeMint transaction mined in.
type Result struct {
	TokenURI     string `json:"tokenURI"`
	ProviderUsed string `json:"providerUsed"`
	DurationMs   int64  `json:"durationMs"`
	BlockNumber  int64  `json:"blockNumber,omitempty"`
}

// TaskError holds the terminal error classification and message of a task
// that did not complete.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// MintRequest captures the client-supplied inputs of an enqueue, persisted
// with the task so the queue can be reseeded from the store after a restart.
type MintRequest struct {
	Buyer          string `json:"buyer,omitempty"`
	Breed          string `json:"breed"`
	PromptExtras   string `json:"promptExtras,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Force          bool   `json:"force,omitempty"`
	Regenerate     bool   `json:"regenerate,omitempty"`
}

// Task represents one attempt to generate and mint an artifact for a
// specific token. It is created by the enqueue path, mutated only through
// Apply, and deleted by the cleanup sweep after its terminal TTL.
type Task struct {
	ID              string         `json:"task_id"`
	TokenID         int64          `json:"token_id"`
	Status          Status         `json:"status"`
	Progress        int            `json:"progress"`
	Message         string         `json:"message"`
	Provider        string         `json:"provider,omitempty"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
	Priority        Priority       `json:"priority"`
	Request         *MintRequest   `json:"request,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
	// TimeoutAt is the deadline after which the sweeper moves the task to
	// TIMEOUT. Nil means the task never times out.
	TimeoutAt             *time.Time `json:"timeout_at,omitempty"`
	EstimatedCompletionAt *time.Time `json:"estimated_completion_time,omitempty"`

	History []HistoryEntry `json:"history"`
	Result  *Result        `json:"result,omitempty"`
	Error   *TaskError     `json:"error,omitempty"`
}

var taskIDPattern = regexp.MustCompile(`^task_\d+_[0-9a-f]{16}$`)

// NewTaskID generates a unique, unguessable task id of the shape
// task_<ms-epoch>_<16 hex chars>.
func NewTaskID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process has no usable entropy source and cannot mint ids.
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return fmt.Sprintf("task_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}

// ValidTaskID reports whether the given string has the task id shape.
func ValidTaskID(id string) bool {
	return taskIDPattern.MatchString(id)
}

// NewTask creates a new pending task for the given token. A positive timeout
// sets the deadline relative to creation time; zero or negative leaves the
// deadline at creation time so the very next sweep times the task out.
func NewTask(tokenID int64, provider string, options map[string]any, priority Priority, req *MintRequest, timeout time.Duration) (*Task, error) {
	if tokenID < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTokenID, tokenID)
	}
	if priority == "" {
		priority = PriorityNormal
	}

	now := time.Now().UTC()
	task := &Task{
		ID:              NewTaskID(),
		TokenID:         tokenID,
		Status:          StatusPending,
		Progress:        0,
		Message:         "queued",
		Provider:        provider,
		ProviderOptions: options,
		Priority:        priority,
		Request:         req,
		CreatedAt:       now,
		UpdatedAt:       now,
		History: []HistoryEntry{{
			Time:     now,
			Status:   StatusPending,
			Message:  "queued",
			Progress: 0,
		}},
	}

	deadline := now.Add(timeout)
	task.TimeoutAt = &deadline

	return task, nil
}

// Validate checks the task's structural invariants. It is called before
// every store write.
func (t *Task) Validate() error {
	if !ValidTaskID(t.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, t.ID)
	}
	if t.TokenID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTokenID, t.TokenID)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrValidation, t.Progress)
	}
	// progress == 100 iff status == COMPLETED
	if (t.Progress == 100) != (t.Status == StatusCompleted) {
		return fmt.Errorf("%w: progress %d inconsistent with status %s",
			ErrValidation, t.Progress, t.Status)
	}
	if len(t.History) == 0 || t.History[0].Status != StatusPending {
		return fmt.Errorf("%w: history must start with a PENDING entry", ErrValidation)
	}
	return nil
}

// Expired reports whether the task's deadline has passed at the given time.
func (t *Task) Expired(now time.Time) bool {
	return t.TimeoutAt != nil && now.After(*t.TimeoutAt)
}

// Deadline returns the task's timeout deadline and whether one is set.
func (t *Task) Deadline() (time.Time, bool) {
	if t.TimeoutAt == nil {
		return time.Time{}, false
	}
	return *t.TimeoutAt, true
}
