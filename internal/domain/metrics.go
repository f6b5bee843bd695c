package domain

// Metrics is the aggregate counter document persisted alongside tasks.
// It is updated in the same transaction as the task write that triggered
// the change, so the counters never drift from the rows.
type Metrics struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Active    int64 `json:"active"`
	// AverageCompletionMs is a running mean over completed tasks.
	AverageCompletionMs float64 `json:"averageCompletionTime"`
}

// MetricsTypeMint keys the coordinator's metrics document.
const MetricsTypeMint = "mint"

// RecordCreated counts a newly enqueued task.
func (m *Metrics) RecordCreated() {
	m.Created++
	m.Active++
}

// RecordCompleted counts a successful completion and folds its duration
// into the running mean.
func (m *Metrics) RecordCompleted(durationMs int64) {
	m.Completed++
	m.decActive()
	m.AverageCompletionMs += (float64(durationMs) - m.AverageCompletionMs) / float64(m.Completed)
}

// RecordFailed counts a task that reached FAILED.
func (m *Metrics) RecordFailed() {
	m.Failed++
	m.decActive()
}

// RecordInactive counts a task that left the active set without completing
// or failing (canceled or timed out).
func (m *Metrics) RecordInactive() {
	m.decActive()
}

func (m *Metrics) decActive() {
	if m.Active > 0 {
		m.Active--
	}
}
