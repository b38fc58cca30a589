package workflow

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

// Activities wraps the extraction pipeline for Temporal. The pipeline owns
// job lifecycle and DLQ bookkeeping; the activity only translates its error
// classification into Temporal retry semantics.
type Activities struct {
	pipeline *extractor.Pipeline
}

// NewActivities builds the activity set around a pipeline.
func NewActivities(pipeline *extractor.Pipeline) *Activities {
	return &Activities{pipeline: pipeline}
}

// ExtractDocument runs the full pipeline for one document. Permanent
// failures come back as non-retryable application errors so Temporal does
// not re-run a job the DLQ already holds.
func (a *Activities) ExtractDocument(ctx context.Context, req extractor.Request) (*model.ExtractionJob, error) {
	job, err := a.pipeline.Run(ctx, req)
	if err != nil {
		if !resilience.IsTransient(err) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), permanentErrorType, err)
		}
		return nil, err
	}
	return job, nil
}
