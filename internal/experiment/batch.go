package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/anthropic"
)

// RunAllBatch evaluates an experiment against every ground-truth document
// through the Anthropic batch API: one cache-priming request, then a single
// batch keyed by document id, polled until done. Trades latency for the
// batch discount; used for large ground-truth sets.
func (e *Evaluator) RunAllBatch(ctx context.Context, llm anthropic.Client, experimentID string) (*BatchOutcome, error) {
	exp, err := e.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: get %s", experimentID)
	}
	if exp == nil {
		return nil, eris.Errorf("experiment: %s not found", experimentID)
	}
	docs, err := e.store.ListGroundTruthDocs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "experiment: list ground truth docs")
	}
	if len(docs) == 0 {
		return nil, eris.New("experiment: no ground truth documents to test against")
	}

	pr := extractor.PromptFromExperiment(exp)
	system := anthropic.BuildCachedSystemBlocks(pr.Text)
	temp := pr.Temperature

	out := &BatchOutcome{
		BatchID:      uuid.NewString(),
		ExperimentID: experimentID,
	}

	items := make([]anthropic.BatchRequestItem, 0, len(docs))
	byID := make(map[string]model.GroundTruthDocument, len(docs))
	for _, doc := range docs {
		text, err := e.pipeline.LoadText(ctx, doc.FilePath)
		if err != nil {
			out.Failures++
			zap.L().Error("experiment: load document for batch",
				zap.String("doc_id", doc.ID), zap.Error(err))
			continue
		}
		byID[doc.ID] = doc
		items = append(items, anthropic.BatchRequestItem{
			CustomID: doc.ID,
			Params: anthropic.MessageRequest{
				Model:       pr.Model,
				MaxTokens:   int64(pr.MaxTokens),
				System:      system,
				Messages:    []anthropic.Message{{Role: "user", Content: text}},
				Temperature: &temp,
			},
		})
	}
	if len(items) == 0 {
		return out, eris.New("experiment: no readable ground truth documents")
	}

	// Warm the prompt cache so every batch item reads it instead of
	// re-writing it.
	if _, err := anthropic.PrimerRequest(ctx, llm, anthropic.MessageRequest{
		Model:       pr.Model,
		MaxTokens:   16,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: "ready"}},
		Temperature: &temp,
	}); err != nil {
		zap.L().Warn("experiment: cache primer failed, continuing uncached", zap.Error(err))
	}

	started := time.Now()
	batch, err := llm.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return out, eris.Wrap(err, "experiment: create batch")
	}
	if _, err := anthropic.PollBatch(ctx, llm, batch.ID); err != nil {
		return out, eris.Wrapf(err, "experiment: poll batch %s", batch.ID)
	}
	iter, err := llm.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return out, eris.Wrapf(err, "experiment: fetch batch results %s", batch.ID)
	}
	collected, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return out, eris.Wrap(err, "experiment: collect batch results")
	}
	out.Failures += len(collected.Failures)
	elapsedMs := time.Since(started).Milliseconds()

	for docID, resp := range collected.Succeeded {
		doc := byID[docID]
		truth, err := e.store.ListGroundTruthRequirements(ctx, docID)
		if err != nil {
			out.Failures++
			zap.L().Error("experiment: list ground truth",
				zap.String("doc_id", docID), zap.Error(err))
			continue
		}

		ext := e.pipeline.FromResponse(resp)
		ext.Batch = true
		res := &model.TestResult{
			ID:               uuid.NewString(),
			ExperimentID:     experimentID,
			GroundTruthDocID: docID,
			TestBatchID:      out.BatchID,
			ProcessingMs:     elapsedMs,
			CreatedAt:        time.Now().UTC(),
		}
		e.fill(res, ext, &doc, truth)

		if err := e.store.RecordTestResult(ctx, res); err != nil {
			out.Failures++
			zap.L().Error("experiment: record batch result",
				zap.String("doc_id", docID), zap.Error(err))
			continue
		}
		out.Results = append(out.Results, *res)
	}

	summarize(out)
	return out, nil
}
