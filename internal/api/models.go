package api

// Common response structures for the coordinator's query surface. Task
// records serialize through the domain type directly; these models cover
// the composite payloads.

// ProcessResponse is the payload of the enqueue endpoint.
type ProcessResponse struct {
	// Status is "queued" for a fresh task and "already_processed" when the
	// request collapsed into existing work.
	Status        string         `json:"status"`
	TaskID        string         `json:"taskId,omitempty"`
	TokenID       int64          `json:"tokenId"`
	Breed         string         `json:"breed,omitempty"`
	ImageProvider string         `json:"imageProvider,omitempty"`
	CurrentURI    string         `json:"currentURI,omitempty"`
	Owner         string         `json:"owner,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}

// UnknownTaskResponse is returned for status lookups that miss. UNKNOWN is
// synthetic and never stored.
type UnknownTaskResponse struct {
	Status string `json:"status"`
	TaskID string `json:"taskId"`
}

// MetricsResponse combines the persisted counters with live per-status
// counts from the tasks table.
type MetricsResponse struct {
	Created                      int64   `json:"created"`
	Completed                    int64   `json:"completed"`
	Failed                       int64   `json:"failed"`
	Active                       int64   `json:"active"`
	AverageCompletionTimeSeconds float64 `json:"averageCompletionTimeSeconds"`
	Pending                      int64   `json:"pending"`
	Processing                   int64   `json:"processing"`
	Total                        int64   `json:"total"`
}
