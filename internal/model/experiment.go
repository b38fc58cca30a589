package model

import "time"

// Default sampling parameters for new experiments.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 8000
)

// PromptExperiment is a named, versioned extraction strategy under
// comparison. Experiments are toggled active/inactive, never deleted.
type PromptExperiment struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Hypothesis    string    `json:"hypothesis,omitempty"`
	PromptText    string    `json:"prompt_text"`
	PromptVersion int       `json:"prompt_version"`
	LLMModel      string    `json:"llm_model"`
	Temperature   float64   `json:"temperature"`
	MaxTokens     int       `json:"max_tokens"`
	IsBaseline    bool      `json:"is_baseline"`
	IsActive      bool      `json:"is_active"`
	TotalTests    int       `json:"total_tests"`
	AvgAccuracy   float64   `json:"average_accuracy"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AccuracyScores carries the four sub-scores of one comparison. Overall is
// 0.4 x zone + 0.6 x field; location is recorded but not folded in.
type AccuracyScores struct {
	Overall  float64 `json:"overall_accuracy"`
	Zone     float64 `json:"zone_accuracy"`
	Field    float64 `json:"field_accuracy"`
	Location float64 `json:"location_accuracy"`
}

// TestResult is one scoring event for an experiment against a ground-truth
// document. Append-only.
type TestResult struct {
	ID               string         `json:"id"`
	ExperimentID     string         `json:"prompt_experiment_id"`
	GroundTruthDocID string         `json:"ground_truth_doc_id"`
	TestEpoch        int            `json:"test_epoch"`
	TestBatchID      string         `json:"test_batch_id,omitempty"`
	RawResponse      string         `json:"raw_response,omitempty"`
	ParsedZonesCount int            `json:"parsed_zones_count"`
	Success          bool           `json:"extraction_success"`
	Scores           AccuracyScores `json:"accuracy_scores"`
	ProcessingMs     int64          `json:"processing_time_ms"`
	TokensUsed       int            `json:"tokens_used,omitempty"`
	CostUSD          float64        `json:"cost_usd,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}
