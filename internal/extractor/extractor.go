// Package extractor orchestrates one extraction pass: document text in,
// persisted zone requirements and a finished job record out. It owns the
// job lifecycle and parks failures in the dead letter queue.
package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/cost"
	"github.com/sells-group/zoning-cli/internal/mapper"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/ocr"
	"github.com/sells-group/zoning-cli/internal/parse"
	"github.com/sells-group/zoning-cli/internal/persist"
	"github.com/sells-group/zoning-cli/internal/resilience"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/anthropic"
)

// maxDLQRetries bounds how often a failed job may be re-run from the queue.
const maxDLQRetries = 3

// Pipeline wires the extraction stages together over injected dependencies.
type Pipeline struct {
	store        store.Store
	llm          anthropic.Client
	ocr          ocr.Extractor
	mapper       *mapper.Mapper
	persister    *persist.Persister
	calc         *cost.Calculator
	anthropicCfg config.AnthropicConfig
	retry        resilience.RetryConfig
}

// New builds a Pipeline. A nil mapper falls back to the built-in registry
// and default corrector; a nil calculator prices with default rates.
func New(st store.Store, llm anthropic.Client, textExtractor ocr.Extractor, m *mapper.Mapper, calc *cost.Calculator, cfg config.AnthropicConfig) *Pipeline {
	if m == nil {
		m = mapper.New(nil, nil)
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return &Pipeline{
		store:        st,
		llm:          llm,
		ocr:          textExtractor,
		mapper:       m,
		persister:    persist.New(st),
		calc:         calc,
		anthropicCfg: cfg,
		retry:        retryCfg,
	}
}

// Request describes one document to extract. Text may be pre-supplied (API
// submissions); otherwise FilePath is read, through OCR for PDFs.
type Request struct {
	// JobID preassigns the job's identity; callers that respond before
	// processing finishes (the HTTP API) need it up front. Empty means a
	// fresh UUID.
	JobID    string
	FilePath string
	Filename string
	Text     string
	Town     string
	County   string
	State    string
}

// Extraction is the parsed and mapped output of one LLM call, before any
// persistence decision.
type Extraction struct {
	Requirements []model.ZoneRequirement
	Corrections  int
	Location     persist.Location
	Confidence   float64
	FallbackUsed bool
	RawResponse  string
	Model        string
	Usage        anthropic.TokenUsage
	// Batch marks responses that came through the batch API, which prices
	// at a discount.
	Batch bool
}

// CostUSD prices the call behind this extraction.
func (e *Extraction) CostUSD(calc *cost.Calculator) float64 {
	return calc.Claude(e.Model, e.Batch,
		int(e.Usage.InputTokens),
		int(e.Usage.OutputTokens),
		int(e.Usage.CacheCreationInputTokens),
		int(e.Usage.CacheReadInputTokens),
	)
}

// Run executes the full pipeline for one document and returns the finished
// job record. Pipeline failures are recorded on the job, classified, and
// enqueued to the DLQ; the job is returned alongside the error so callers
// can report both.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.ExtractionJob, error) {
	id := req.JobID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	job := &model.ExtractionJob{
		ID:               id,
		Filename:         filename(req),
		OriginalFilename: filename(req),
		FilePath:         req.FilePath,
		Town:             req.Town,
		County:           req.County,
		State:            req.State,
		Status:           model.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "extractor: create job")
	}
	return job, p.process(ctx, job, req)
}

// Rerun re-executes the pipeline for an existing job, reusing its identity.
// Used by DLQ retries.
func (p *Pipeline) Rerun(ctx context.Context, job *model.ExtractionJob) error {
	req := Request{
		FilePath: job.FilePath,
		Filename: job.Filename,
		Town:     job.Town,
		County:   job.County,
		State:    job.State,
	}
	job.Error = ""
	return p.process(ctx, job, req)
}

func (p *Pipeline) process(ctx context.Context, job *model.ExtractionJob, req Request) error {
	started := time.Now()

	job.Status = model.JobStatusProcessing
	if err := p.updateJob(ctx, job); err != nil {
		return err
	}

	text := req.Text
	if text == "" {
		var err error
		text, err = p.LoadText(ctx, req.FilePath)
		if err != nil {
			return p.fail(ctx, job, "ocr", err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return p.fail(ctx, job, "ocr", eris.Errorf("extractor: document %s produced no text", job.Filename))
	}

	pr, err := p.promptFor(ctx)
	if err != nil {
		return p.fail(ctx, job, "prompt", err)
	}

	ext, err := p.Extract(ctx, text, pr)
	if err != nil {
		return p.fail(ctx, job, "llm", err)
	}

	loc := persist.ResolveLocation(
		persist.Location{Town: req.Town, County: req.County, State: req.State},
		ext.Location,
		job.Filename,
		job.ID,
	)
	outcome, err := p.persister.SaveBatch(ctx, ext.Requirements, loc, job.ID)
	job.ZonesSaved = outcome.Saved
	job.DuplicatesSkipped = outcome.Duplicates
	if err != nil {
		return p.fail(ctx, job, "persist", err)
	}

	job.Status = model.JobStatusCompleted
	job.LLMModel = ext.Model
	job.Corrections = ext.Corrections
	job.TokensUsed = ext.Usage.Total()
	job.CostUSD = ext.CostUSD(p.calc)
	job.ProcessingMs = time.Since(started).Milliseconds()
	if err := p.updateJob(ctx, job); err != nil {
		return err
	}

	zap.L().Info("extractor: job completed",
		zap.String("job_id", job.ID),
		zap.String("town", loc.Town),
		zap.Int("zones_saved", job.ZonesSaved),
		zap.Int("duplicates_skipped", job.DuplicatesSkipped),
		zap.Int("corrections", job.Corrections),
		zap.Bool("fallback_used", ext.FallbackUsed),
		zap.Float64("cost_usd", job.CostUSD),
	)
	return nil
}

// Extract runs one LLM call and the parse/map stages over the given text.
// It persists nothing; Run and the experiment evaluator both build on it.
func (p *Pipeline) Extract(ctx context.Context, text string, pr Prompt) (*Extraction, error) {
	if pr.Model == "" {
		pr.Model = p.anthropicCfg.Model
	}

	temp := pr.Temperature
	msgReq := anthropic.MessageRequest{
		Model:       pr.Model,
		MaxTokens:   int64(pr.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(pr.Text),
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.llm.CreateMessage(ctx, msgReq)
	})
	if err != nil {
		return nil, eris.Wrap(err, "extractor: model call")
	}
	resp.Usage.Log(resp.Model, "extract")

	return p.FromResponse(resp), nil
}

// FromResponse runs the parse and map stages over an already-received model
// response. Batch evaluation collects responses separately and feeds them
// through here.
func (p *Pipeline) FromResponse(resp *anthropic.MessageResponse) *Extraction {
	raw := firstText(resp)
	doc := parse.Parse(raw)

	ext := &Extraction{
		Location:     persist.Location{Town: doc.Town, County: doc.County, State: doc.State},
		Confidence:   doc.Confidence,
		FallbackUsed: doc.FallbackUsed,
		RawResponse:  raw,
		Model:        resp.Model,
		Usage:        resp.Usage,
	}
	for _, record := range doc.Zones {
		res, ok := p.mapper.MapZone(record, doc.Confidence)
		if !ok {
			continue
		}
		ext.Requirements = append(ext.Requirements, res.Requirement)
		ext.Corrections += len(res.Corrections)
	}
	return ext
}

// LoadText turns a document file into plain text. PDFs go through the OCR
// provider; anything else is read as-is.
func (p *Pipeline) LoadText(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", eris.New("extractor: no file path and no inline text")
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if p.ocr == nil {
			return "", eris.New("extractor: pdf input but no ocr extractor configured")
		}
		text, err := p.ocr.ExtractText(ctx, path)
		if err != nil {
			return "", eris.Wrapf(err, "extractor: ocr %s", filepath.Base(path))
		}
		return text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "extractor: read %s", filepath.Base(path))
	}
	return string(data), nil
}

// fail marks the job failed, records the error, and parks it in the DLQ.
func (p *Pipeline) fail(ctx context.Context, job *model.ExtractionJob, stage string, cause error) error {
	job.Status = model.JobStatusFailed
	job.Error = cause.Error()
	if err := p.updateJob(ctx, job); err != nil {
		zap.L().Error("extractor: update failed job", zap.String("job_id", job.ID), zap.Error(err))
	}

	now := time.Now().UTC()
	entry := resilience.DLQEntry{
		ID:           uuid.NewString(),
		Job:          *job,
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		FailedStage:  stage,
		MaxRetries:   maxDLQRetries,
		NextRetryAt:  now.Add(time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := p.store.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Error("extractor: enqueue dlq", zap.String("job_id", job.ID), zap.Error(err))
	}

	zap.L().Error("extractor: job failed",
		zap.String("job_id", job.ID),
		zap.String("stage", stage),
		zap.String("error_type", entry.ErrorType),
		zap.Error(cause),
	)
	return cause
}

func (p *Pipeline) updateJob(ctx context.Context, job *model.ExtractionJob) error {
	job.UpdatedAt = time.Now().UTC()
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrapf(err, "extractor: update job %s", job.ID)
	}
	return nil
}

func firstText(resp *anthropic.MessageResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text
		}
	}
	return ""
}

func filename(req Request) string {
	if req.Filename != "" {
		return req.Filename
	}
	if req.FilePath != "" {
		return filepath.Base(req.FilePath)
	}
	return "inline"
}
