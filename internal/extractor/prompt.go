package extractor

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

// Prompt is the resolved instruction set for one extraction call: either the
// active experiment's prompt or the built-in default.
type Prompt struct {
	// ExperimentID is set when the prompt came from a stored experiment.
	ExperimentID string
	Text         string
	Model        string
	Temperature  float64
	MaxTokens    int
}

const promptHeader = `You are a zoning ordinance analyst. Extract the dimensional requirements for every zoning district in the document below.

Respond with a single JSON object and nothing else:
{
  "extracted_town": "<town or city name, or null>",
  "extracted_county": "<county name, or null>",
  "extracted_state": "<two-letter state code, or null>",
  "extraction_confidence": <0.0-1.0>,
  "zones": [
    {
      "zone": "<district code, e.g. R-1>",
      "zone_name": "<full district name>",
`

const promptFooter = `    }
  ]
}

Rules:
- Every numeric field is a plain number or null. Never write units, ranges, or text into a numeric field.
- Convert acres to square feet (1 acre = 43560 sq ft).
- If a value applies only to corner lots, use the corner_* fields; interior lots use interior_*.
- Include every district the document defines, even when most of its fields are null.
- Do not invent values. Null is the correct answer for anything the document does not state.`

// DefaultPromptText builds the built-in extraction prompt. The field list is
// generated from the canonical schema so prompt and storage cannot drift.
func DefaultPromptText() string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, f := range model.NumericFields {
		b.WriteString("      \"")
		b.WriteString(string(f))
		b.WriteString("\": <number or null>,\n")
	}
	b.WriteString(promptFooter)
	return b.String()
}

// promptFor resolves the prompt for an extraction run: the most accurate
// active experiment wins, otherwise the built-in default with the configured
// sampling parameters.
func (p *Pipeline) promptFor(ctx context.Context) (Prompt, error) {
	exps, err := p.store.ListExperiments(ctx, store.ExperimentFilter{ActiveOnly: true, Limit: 1})
	if err != nil {
		return Prompt{}, eris.Wrap(err, "extractor: list active experiments")
	}
	if len(exps) > 0 {
		exp := exps[0]
		zap.L().Info("extractor: using active experiment prompt",
			zap.String("experiment_id", exp.ID),
			zap.String("name", exp.Name),
		)
		return PromptFromExperiment(&exp), nil
	}

	return Prompt{
		Text:        DefaultPromptText(),
		Model:       p.anthropicCfg.Model,
		Temperature: p.anthropicCfg.Temperature,
		MaxTokens:   p.anthropicCfg.MaxTokens,
	}, nil
}

// PromptFromExperiment converts a stored experiment into a runnable prompt.
// Empty sampling fields keep the experiment row usable before defaults were
// backfilled.
func PromptFromExperiment(exp *model.PromptExperiment) Prompt {
	pr := Prompt{
		ExperimentID: exp.ID,
		Text:         exp.PromptText,
		Model:        exp.LLMModel,
		Temperature:  exp.Temperature,
		MaxTokens:    exp.MaxTokens,
	}
	if pr.Text == "" {
		pr.Text = DefaultPromptText()
	}
	if pr.MaxTokens == 0 {
		pr.MaxTokens = 8000
	}
	return pr
}
