package domain

// ProcessState is the small resumption document the tick handler persists
// between invocations, keyed by a state type (e.g. "cron").
type ProcessState struct {
	// LastProcessedBlock is the highest block a finalizeMint receipt has
	// reported. Advance enforces the monotonicity.
	LastProcessedBlock int64 `json:"lastProcessedBlock"`
	// ProcessedTokens is a set semantically; duplicates are ignored on add.
	ProcessedTokens []int64 `json:"processedTokens"`
	// PendingTasks holds the ids of non-terminal tasks at the end of the
	// last tick.
	PendingTasks []string `json:"pendingTasks"`
}

// StateTypeCron keys the cron loop's resumption document.
const StateTypeCron = "cron"

// Advance raises LastProcessedBlock to the given block if it is higher.
// Lower values are ignored, keeping the field monotonic.
func (s *ProcessState) Advance(block int64) {
	if block > s.LastProcessedBlock {
		s.LastProcessedBlock = block
	}
}

// MarkProcessed adds a token to the processed set, ignoring duplicates.
func (s *ProcessState) MarkProcessed(tokenID int64) {
	for _, existing := range s.ProcessedTokens {
		if existing == tokenID {
			return
		}
	}
	s.ProcessedTokens = append(s.ProcessedTokens, tokenID)
}
