// Package store persists extraction jobs, zoning requirements, prompt
// experiments, test results, ground truth, and district inventories behind
// one interface with Postgres and SQLite implementations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

// JobFilter specifies criteria for listing extraction jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Town   string          `json:"town,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RequirementFilter specifies criteria for listing zoning requirements.
// Town and Zone match case-insensitively on substrings; State matches
// exactly.
type RequirementFilter struct {
	Town          string  `json:"town,omitempty"`
	County        string  `json:"county,omitempty"`
	State         string  `json:"state,omitempty"`
	Zone          string  `json:"zone,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	Offset        int     `json:"offset,omitempty"`
}

// ExperimentFilter specifies criteria for listing prompt experiments.
// Results are ordered by average accuracy, best first.
type ExperimentFilter struct {
	ActiveOnly bool `json:"active_only,omitempty"`
	MinTests   int  `json:"min_tests,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}

// DistrictFilter specifies criteria for listing zoning districts.
type DistrictFilter struct {
	Municipality string `json:"municipality,omitempty"`
	State        string `json:"state,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the extraction pipeline and
// the accuracy-scoring engine. Get methods return (nil, nil) when the row
// does not exist.
type Store interface {
	// Extraction jobs
	CreateJob(ctx context.Context, job *model.ExtractionJob) error
	UpdateJob(ctx context.Context, job *model.ExtractionJob) error
	GetJob(ctx context.Context, jobID string) (*model.ExtractionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.ExtractionJob, error)
	SummarizeJobs(ctx context.Context) (*model.JobSummary, error)

	// Zoning requirements. Upsert conflicts on the case-insensitive
	// (town, county, state, zone) identity and updates in place; created
	// reports whether a new row was inserted.
	UpsertRequirement(ctx context.Context, req *model.ZoneRequirement) (created bool, err error)
	ListRequirements(ctx context.Context, filter RequirementFilter) ([]model.ZoneRequirement, error)

	// Prompt experiments
	CreateExperiment(ctx context.Context, exp *model.PromptExperiment) error
	GetExperiment(ctx context.Context, id string) (*model.PromptExperiment, error)
	ListExperiments(ctx context.Context, filter ExperimentFilter) ([]model.PromptExperiment, error)
	SetExperimentActive(ctx context.Context, id string, active bool) error

	// Test results. RecordTestResult inserts the immutable result and folds
	// its overall score into the owning experiment's rolling aggregates in
	// the same transaction.
	RecordTestResult(ctx context.Context, res *model.TestResult) error
	ListTestResults(ctx context.Context, experimentID string) ([]model.TestResult, error)

	// Ground truth
	CreateGroundTruthDoc(ctx context.Context, doc *model.GroundTruthDocument) error
	GetGroundTruthDoc(ctx context.Context, id string) (*model.GroundTruthDocument, error)
	ListGroundTruthDocs(ctx context.Context) ([]model.GroundTruthDocument, error)
	ReplaceGroundTruthRequirements(ctx context.Context, docID string, reqs []model.GroundTruthRequirement) error
	ListGroundTruthRequirements(ctx context.Context, docID string) ([]model.GroundTruthRequirement, error)

	// District inventories
	UpsertDistricts(ctx context.Context, districts []model.District) (int64, error)
	ListDistricts(ctx context.Context, filter DistrictFilter) ([]model.District, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
