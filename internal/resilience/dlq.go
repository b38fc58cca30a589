package resilience

import (
	"time"

	"github.com/sells-group/zoning-cli/internal/model"
)

// DLQEntry is a failed extraction job parked for a later retry.
type DLQEntry struct {
	ID           string              `json:"id"`
	Job          model.ExtractionJob `json:"job"`
	Error        string              `json:"error"`
	ErrorType    string              `json:"error_type"` // "transient" or "permanent"
	FailedStage  string              `json:"failed_stage,omitempty"`
	RetryCount   int                 `json:"retry_count"`
	MaxRetries   int                 `json:"max_retries"`
	NextRetryAt  time.Time           `json:"next_retry_at"`
	CreatedAt    time.Time           `json:"created_at"`
	LastFailedAt time.Time           `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether this entry still has retry budget left.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
