package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/notion"
)

// Reporter publishes a batch summary somewhere humans look at it.
type Reporter interface {
	PublishSummary(ctx context.Context, exp *model.PromptExperiment, out *BatchOutcome) error
}

// NotionReporter writes one summary page per batch into the results
// database, so prompt-tuning discussion happens next to the numbers.
type NotionReporter struct {
	client notion.Client
	dbID   string
}

// NewNotionReporter builds a reporter targeting the given results database.
func NewNotionReporter(client notion.Client, databaseID string) *NotionReporter {
	return &NotionReporter{client: client, dbID: databaseID}
}

// PublishSummary creates the results page. Page properties mirror the
// BatchOutcome so the database is sortable by accuracy and cost.
func (r *NotionReporter) PublishSummary(ctx context.Context, exp *model.PromptExperiment, out *BatchOutcome) error {
	title := fmt.Sprintf("%s — %s", exp.Name, time.Now().UTC().Format("2006-01-02 15:04"))

	page, err := r.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(r.dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
			},
			"Experiment ID": richText(exp.ID),
			"Batch ID":      richText(out.BatchID),
			"Model":         richText(exp.LLMModel),
			"Tests":         numberProp(float64(len(out.Results))),
			"Failures":      numberProp(float64(out.Failures)),
			"Overall":       numberProp(out.Averages.Overall),
			"Zone":          numberProp(out.Averages.Zone),
			"Field":         numberProp(out.Averages.Field),
			"Location":      numberProp(out.Averages.Location),
			"Cost USD":      numberProp(out.TotalCostUSD),
		},
	})
	if err != nil {
		return eris.Wrap(err, "experiment: publish summary")
	}

	zap.L().Info("experiment: summary published",
		zap.String("experiment_id", exp.ID),
		zap.String("batch_id", out.BatchID),
		zap.String("page_id", string(page.ID)),
	)
	return nil
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}},
	}
}

func numberProp(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: v}
}
