package model

import "time"

// JobStatus tracks an extraction job through its lifecycle.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ExtractionJob records one extraction pass over one document.
type ExtractionJob struct {
	ID                string    `json:"id"`
	Filename          string    `json:"filename"`
	OriginalFilename  string    `json:"original_filename,omitempty"`
	FilePath          string    `json:"file_path,omitempty"`
	Town              string    `json:"town,omitempty"`
	County            string    `json:"county,omitempty"`
	State             string    `json:"state,omitempty"`
	Status            JobStatus `json:"status"`
	LLMModel          string    `json:"llm_model,omitempty"`
	ZonesSaved        int       `json:"zones_saved"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	Corrections       int       `json:"corrections"`
	Error             string    `json:"error,omitempty"`
	ProcessingMs      int64     `json:"processing_time_ms,omitempty"`
	TokensUsed        int       `json:"tokens_used,omitempty"`
	CostUSD           float64   `json:"cost_usd,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// JobSummary aggregates job counts and outcomes for the summary endpoint.
type JobSummary struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Processing        int     `json:"processing"`
	Completed         int     `json:"completed"`
	Failed            int     `json:"failed"`
	ZonesSaved        int     `json:"zones_saved"`
	DuplicatesSkipped int     `json:"duplicates_skipped"`
	Corrections       int     `json:"corrections"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}
