package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
)

type fakeNotion struct {
	created []*notionapi.PageCreateRequest
	err     error
}

func (f *fakeNotion) QueryDatabase(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (f *fakeNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "page-1"}, nil
}

func TestNotionReporter_PublishSummary(t *testing.T) {
	client := &fakeNotion{}
	r := NewNotionReporter(client, "results-db")

	exp := &model.PromptExperiment{ID: "exp-1", Name: "baseline", LLMModel: testModel}
	out := &BatchOutcome{
		BatchID:  "batch-1",
		Results:  make([]model.TestResult, 4),
		Failures: 1,
		Averages: model.AccuracyScores{Overall: 0.85, Zone: 0.9, Field: 0.82, Location: 1.0},
		TotalCostUSD: 0.42,
	}

	require.NoError(t, r.PublishSummary(context.Background(), exp, out))
	require.Len(t, client.created, 1)

	req := client.created[0]
	assert.Equal(t, notionapi.DatabaseID("results-db"), req.Parent.DatabaseID)

	title, ok := req.Properties["Name"].(notionapi.TitleProperty)
	require.True(t, ok)
	require.NotEmpty(t, title.Title)
	assert.Contains(t, title.Title[0].Text.Content, "baseline")

	overall, ok := req.Properties["Overall"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 0.85, overall.Number, 1e-9)

	tests, ok := req.Properties["Tests"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 4, tests.Number, 1e-9)
}

func TestNotionReporter_PublishSummary_Error(t *testing.T) {
	client := &fakeNotion{err: errors.New("unauthorized")}
	r := NewNotionReporter(client, "results-db")

	err := r.PublishSummary(context.Background(), &model.PromptExperiment{Name: "x"}, &BatchOutcome{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish summary")
}
