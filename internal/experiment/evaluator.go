// Package experiment scores prompt experiments against hand-verified ground
// truth and records the results, so prompt changes are judged by accuracy
// numbers instead of anecdotes.
package experiment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zoning-cli/internal/cost"
	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/scorer"
	"github.com/sells-group/zoning-cli/internal/store"
)

// Evaluator runs experiments against ground-truth documents.
type Evaluator struct {
	store         store.Store
	pipeline      *extractor.Pipeline
	scorer        *scorer.Scorer
	calc          *cost.Calculator
	maxConcurrent int
}

// New builds an Evaluator. maxConcurrent bounds parallel documents during
// RunAll; values below 1 run sequentially.
func New(st store.Store, pipe *extractor.Pipeline, sc *scorer.Scorer, calc *cost.Calculator, maxConcurrent int) *Evaluator {
	if sc == nil {
		sc = scorer.New(scorer.DefaultConfig())
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Evaluator{
		store:         st,
		pipeline:      pipe,
		scorer:        sc,
		calc:          calc,
		maxConcurrent: maxConcurrent,
	}
}

// RunTest evaluates one experiment against one ground-truth document and
// records the result. A failed extraction still produces a recorded result
// with Success=false so the experiment's average reflects it.
func (e *Evaluator) RunTest(ctx context.Context, experimentID, docID string) (*model.TestResult, error) {
	return e.runTest(ctx, experimentID, docID, "")
}

func (e *Evaluator) runTest(ctx context.Context, experimentID, docID, batchID string) (*model.TestResult, error) {
	exp, err := e.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: get %s", experimentID)
	}
	if exp == nil {
		return nil, eris.Errorf("experiment: %s not found", experimentID)
	}

	doc, truth, err := e.groundTruth(ctx, docID)
	if err != nil {
		return nil, err
	}

	text, err := e.pipeline.LoadText(ctx, doc.FilePath)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: load document %s", doc.DocumentName)
	}

	started := time.Now()
	ext, extractErr := e.pipeline.Extract(ctx, text, extractor.PromptFromExperiment(exp))

	res := &model.TestResult{
		ID:               uuid.NewString(),
		ExperimentID:     experimentID,
		GroundTruthDocID: docID,
		TestBatchID:      batchID,
		ProcessingMs:     time.Since(started).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if extractErr != nil {
		zap.L().Error("experiment: extraction failed",
			zap.String("experiment_id", experimentID),
			zap.String("doc_id", docID),
			zap.Error(extractErr),
		)
	} else {
		e.fill(res, ext, doc, truth)
	}

	if err := e.store.RecordTestResult(ctx, res); err != nil {
		return nil, eris.Wrap(err, "experiment: record test result")
	}

	zap.L().Info("experiment: test recorded",
		zap.String("experiment_id", experimentID),
		zap.String("doc", doc.DocumentName),
		zap.Bool("success", res.Success),
		zap.Float64("overall", res.Scores.Overall),
		zap.Float64("zone", res.Scores.Zone),
		zap.Float64("field", res.Scores.Field),
	)
	return res, nil
}

// fill scores an extraction against truth and copies the outcome onto the
// result row.
func (e *Evaluator) fill(res *model.TestResult, ext *extractor.Extraction, doc *model.GroundTruthDocument, truth []model.GroundTruthRequirement) {
	res.RawResponse = ext.RawResponse
	res.ParsedZonesCount = len(ext.Requirements)
	res.Success = len(ext.Requirements) > 0
	res.Scores = e.scorer.Score(ext.Requirements, doc, truth)
	res.TokensUsed = ext.Usage.Total()
	res.CostUSD = ext.CostUSD(e.calc)
}

func (e *Evaluator) groundTruth(ctx context.Context, docID string) (*model.GroundTruthDocument, []model.GroundTruthRequirement, error) {
	doc, err := e.store.GetGroundTruthDoc(ctx, docID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "experiment: get ground truth doc %s", docID)
	}
	if doc == nil {
		return nil, nil, eris.Errorf("experiment: ground truth doc %s not found", docID)
	}
	truth, err := e.store.ListGroundTruthRequirements(ctx, docID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "experiment: list ground truth for %s", docID)
	}
	return doc, truth, nil
}

// BatchOutcome summarizes one full evaluation run.
type BatchOutcome struct {
	BatchID      string             `json:"batch_id"`
	ExperimentID string             `json:"experiment_id"`
	Results      []model.TestResult `json:"results"`
	Failures     int                `json:"failures"`
	Averages     model.AccuracyScores `json:"averages"`
	TotalCostUSD float64            `json:"total_cost_usd"`
}

// RunAll evaluates an experiment against every ground-truth document with
// bounded concurrency. Individual document failures are counted, not fatal.
func (e *Evaluator) RunAll(ctx context.Context, experimentID string) (*BatchOutcome, error) {
	docs, err := e.store.ListGroundTruthDocs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "experiment: list ground truth docs")
	}
	if len(docs) == 0 {
		return nil, eris.New("experiment: no ground truth documents to test against")
	}

	out := &BatchOutcome{
		BatchID:      uuid.NewString(),
		ExperimentID: experimentID,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for _, doc := range docs {
		g.Go(func() error {
			res, err := e.runTest(gctx, experimentID, doc.ID, out.BatchID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failures++
				zap.L().Error("experiment: document run failed",
					zap.String("doc_id", doc.ID),
					zap.Error(err),
				)
				return nil
			}
			out.Results = append(out.Results, *res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, eris.Wrap(err, "experiment: run all")
	}

	summarize(out)
	zap.L().Info("experiment: batch complete",
		zap.String("experiment_id", experimentID),
		zap.String("batch_id", out.BatchID),
		zap.Int("tests", len(out.Results)),
		zap.Int("failures", out.Failures),
		zap.Float64("avg_overall", out.Averages.Overall),
		zap.Float64("cost_usd", out.TotalCostUSD),
	)
	return out, nil
}

func summarize(out *BatchOutcome) {
	if len(out.Results) == 0 {
		return
	}
	for _, r := range out.Results {
		out.Averages.Overall += r.Scores.Overall
		out.Averages.Zone += r.Scores.Zone
		out.Averages.Field += r.Scores.Field
		out.Averages.Location += r.Scores.Location
		out.TotalCostUSD += r.CostUSD
		if !r.Success {
			out.Failures++
		}
	}
	n := float64(len(out.Results))
	out.Averages.Overall /= n
	out.Averages.Zone /= n
	out.Averages.Field /= n
	out.Averages.Location /= n
}

// Best returns the top experiments by rolling average accuracy, requiring at
// least minTests recorded tests each.
func (e *Evaluator) Best(ctx context.Context, minTests, limit int) ([]model.PromptExperiment, error) {
	exps, err := e.store.ListExperiments(ctx, store.ExperimentFilter{MinTests: minTests, Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "experiment: list best")
	}
	return exps, nil
}
