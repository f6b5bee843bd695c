package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRunningMean(t *testing.T) {
	var m Metrics
	m.RecordCreated()
	m.RecordCreated()
	m.RecordCreated()

	m.RecordCompleted(1000)
	assert.InDelta(t, 1000, m.AverageCompletionMs, 0.001)

	m.RecordCompleted(3000)
	assert.InDelta(t, 2000, m.AverageCompletionMs, 0.001)

	m.RecordFailed()

	assert.Equal(t, int64(3), m.Created)
	assert.Equal(t, int64(2), m.Completed)
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(0), m.Active)
}

func TestMetricsActiveNeverNegative(t *testing.T) {
	var m Metrics
	m.RecordInactive()
	m.RecordFailed()
	assert.Equal(t, int64(0), m.Active)
}

func TestProcessStateAdvanceIsMonotonic(t *testing.T) {
	var s ProcessState
	s.Advance(10)
	s.Advance(5)
	assert.Equal(t, int64(10), s.LastProcessedBlock)
	s.Advance(12)
	assert.Equal(t, int64(12), s.LastProcessedBlock)
}

func TestProcessStateMarkProcessedIgnoresDuplicates(t *testing.T) {
	var s ProcessState
	s.MarkProcessed(42)
	s.MarkProcessed(42)
	s.MarkProcessed(7)
	assert.Equal(t, []int64{42, 7}, s.ProcessedTokens)
}
