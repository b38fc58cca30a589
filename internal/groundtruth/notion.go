package groundtruth

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/notion"
)

// SyncNotion pulls verified documents from the curated Notion database and
// registers the ones the store does not have yet. Notion holds document
// metadata only; the zone rows come from the file the page points at, via
// ImportXLSX or ImportJSON on its file path.
func (i *Importer) SyncNotion(ctx context.Context, client notion.Client, dbID string) (Outcome, error) {
	var out Outcome

	pages, err := notion.QueryVerifiedDocuments(ctx, client, dbID)
	if err != nil {
		return out, eris.Wrap(err, "groundtruth: query notion")
	}

	existing, err := i.store.ListGroundTruthDocs(ctx)
	if err != nil {
		return out, eris.Wrap(err, "groundtruth: list existing docs")
	}
	known := make(map[string]bool, len(existing))
	for _, doc := range existing {
		known[docKey(doc.Town, doc.State, doc.DocumentName)] = true
	}

	for _, page := range pages {
		doc := docFromPage(page)
		if doc.DocumentName == "" || doc.Town == "" {
			zap.L().Warn("groundtruth: notion page missing name or town, skipping",
				zap.String("page_id", string(page.ID)))
			continue
		}
		if known[docKey(doc.Town, doc.State, doc.DocumentName)] {
			continue
		}
		if err := i.store.CreateGroundTruthDoc(ctx, &doc); err != nil {
			return out, eris.Wrapf(err, "groundtruth: create %s", doc.DocumentName)
		}
		out.Documents++
	}

	zap.L().Info("groundtruth: notion sync complete",
		zap.Int("pages", len(pages)),
		zap.Int("new_documents", out.Documents),
	)
	return out, nil
}

func docKey(town, state, name string) string {
	return strings.ToLower(town) + "|" + strings.ToLower(state) + "|" + strings.ToLower(name)
}

// docFromPage maps the curated database's property names onto a document.
func docFromPage(page notionapi.Page) model.GroundTruthDocument {
	return model.GroundTruthDocument{
		ID:            string(page.ID),
		DocumentName:  titleProp(page, "Name"),
		Town:          textProp(page, "Town"),
		County:        textProp(page, "County"),
		State:         textProp(page, "State"),
		FilePath:      textProp(page, "File Path"),
		Complexity:    strings.ToLower(selectProp(page, "Complexity")),
		Description:   textProp(page, "Description"),
		VerifiedBy:    textProp(page, "Verified By"),
		NumberOfZones: int(numberProp(page, "Zones")),
	}
}

func titleProp(page notionapi.Page, name string) string {
	if p, ok := page.Properties[name].(*notionapi.TitleProperty); ok {
		return joinRichText(p.Title)
	}
	return ""
}

func textProp(page notionapi.Page, name string) string {
	if p, ok := page.Properties[name].(*notionapi.RichTextProperty); ok {
		return joinRichText(p.RichText)
	}
	return ""
}

func selectProp(page notionapi.Page, name string) string {
	if p, ok := page.Properties[name].(*notionapi.SelectProperty); ok {
		return p.Select.Name
	}
	return ""
}

func numberProp(page notionapi.Page, name string) float64 {
	if p, ok := page.Properties[name].(*notionapi.NumberProperty); ok {
		return p.Number
	}
	return 0
}

func joinRichText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return strings.TrimSpace(b.String())
}
