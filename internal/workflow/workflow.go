// Package workflow runs document extraction as a durable Temporal workflow.
// The pipeline itself stays synchronous; Temporal supplies retries across
// worker restarts and a queue for bulk ingestion.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/model"
)

const (
	// ExtractDocumentWorkflowName is the registered workflow type.
	ExtractDocumentWorkflowName = "ExtractDocumentWorkflow"

	extractActivityName = "ExtractDocument"

	// permanentErrorType marks failures the activity classified as not
	// worth retrying (bad API key, unparsable document). Temporal stops
	// retrying on it; the job is already parked in the DLQ.
	permanentErrorType = "PermanentExtractionError"
)

// Result is the workflow's summary of a finished extraction job.
type Result struct {
	JobID             string  `json:"job_id"`
	Status            string  `json:"status"`
	ZonesSaved        int     `json:"zones_saved"`
	DuplicatesSkipped int     `json:"duplicates_skipped"`
	Corrections       int     `json:"corrections"`
	TokensUsed        int     `json:"tokens_used"`
	CostUSD           float64 `json:"cost_usd"`
}

// ExtractDocumentWorkflow runs one document through the extraction pipeline.
// Transient activity failures (rate limits, 5xx) retry with backoff;
// permanent ones fail the run immediately.
func ExtractDocumentWorkflow(ctx workflow.Context, req extractor.Request) (*Result, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        2 * time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{permanentErrorType},
		},
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("extraction workflow started", "filename", req.Filename, "town", req.Town)

	var job model.ExtractionJob
	if err := workflow.ExecuteActivity(ctx, extractActivityName, req).Get(ctx, &job); err != nil {
		logger.Error("extraction workflow failed", "filename", req.Filename, "error", err)
		return nil, err
	}

	logger.Info("extraction workflow completed",
		"job_id", job.ID, "zones_saved", job.ZonesSaved, "cost_usd", job.CostUSD)

	return &Result{
		JobID:             job.ID,
		Status:            string(job.Status),
		ZonesSaved:        job.ZonesSaved,
		DuplicatesSkipped: job.DuplicatesSkipped,
		Corrections:       job.Corrections,
		TokensUsed:        job.TokensUsed,
		CostUSD:           job.CostUSD,
	}, nil
}
