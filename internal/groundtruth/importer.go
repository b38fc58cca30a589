// Package groundtruth loads hand-verified ordinance data into the store:
// XLSX workbooks, JSON exports, and a curated Notion database.
package groundtruth

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/correct"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

// Importer writes ground-truth documents and requirements.
type Importer struct {
	store store.Store
}

// New builds an Importer.
func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// Outcome counts what an import touched.
type Outcome struct {
	Documents    int `json:"documents"`
	Requirements int `json:"requirements"`
}

// metadata column names recognized in workbook sheets, besides the canonical
// numeric field names.
const (
	colZone        = "zone"
	colZoneDesc    = "zone_description"
	colTown        = "town"
	colCounty      = "county"
	colState       = "state"
	colComplexity  = "complexity"
	colVerifiedBy  = "verified_by"
	colDescription = "description"
)

// ImportXLSX loads a workbook where each sheet is one verified document: the
// sheet name is the document name, the header row names the columns, and
// each data row is one zone. Column titles are matched against the canonical
// field names after normalization.
func (i *Importer) ImportXLSX(ctx context.Context, path string) (Outcome, error) {
	var out Outcome

	sheets, err := ReadWorkbook(path)
	if err != nil {
		return out, err
	}

	for _, sheet := range sheets {
		zoneCol := columnIndex(sheet.Headers, colZone)
		if zoneCol < 0 {
			return out, eris.Errorf("groundtruth: sheet %q has no zone column", sheet.Name)
		}

		doc := model.GroundTruthDocument{
			ID:               uuid.NewString(),
			DocumentName:     sheet.Name,
			OriginalFilename: path,
			Complexity:       model.ComplexityMedium,
		}
		var reqs []model.GroundTruthRequirement

		for _, row := range sheet.Rows {
			record := asRecord(sheet.Headers, row)

			// Curated sheets keep footnote markers on zone names ("R-1¹");
			// strip them so stored zones line up with extracted ones.
			zone := strings.TrimSpace(correct.CleanMarkers(record[colZone]))
			if zone == "" {
				continue
			}

			// Document metadata rides on the rows; the first row that
			// carries a value wins.
			fillMeta(&doc, record)

			req := model.GroundTruthRequirement{
				ID:               uuid.NewString(),
				GroundTruthDocID: doc.ID,
				Zone:             zone,
				ZoneDescription:  strings.TrimSpace(record[colZoneDesc]),
			}
			for _, field := range model.NumericFields {
				if v, ok := parseNumber(record[string(field)]); ok {
					req.SetNumeric(field, &v)
				}
			}
			reqs = append(reqs, req)
		}

		if len(reqs) == 0 {
			zap.L().Warn("groundtruth: sheet has no zone rows, skipping",
				zap.String("sheet", sheet.Name))
			continue
		}
		doc.NumberOfZones = len(reqs)

		if err := i.save(ctx, &doc, reqs); err != nil {
			return out, err
		}
		out.Documents++
		out.Requirements += len(reqs)
	}

	zap.L().Info("groundtruth: xlsx import complete",
		zap.String("path", path),
		zap.Int("documents", out.Documents),
		zap.Int("requirements", out.Requirements),
	)
	return out, nil
}

// jsonDocument is the JSON import envelope.
type jsonDocument struct {
	Document     model.GroundTruthDocument      `json:"document"`
	Requirements []model.GroundTruthRequirement `json:"requirements"`
}

// ImportJSON loads one document plus its requirements from a JSON file. The
// envelope is {"document": {...}, "requirements": [...]}.
func (i *Importer) ImportJSON(ctx context.Context, path string) (Outcome, error) {
	var out Outcome

	data, err := os.ReadFile(path)
	if err != nil {
		return out, eris.Wrap(err, "groundtruth: read json")
	}
	var env jsonDocument
	if err := json.Unmarshal(data, &env); err != nil {
		return out, eris.Wrap(err, "groundtruth: decode json")
	}
	if env.Document.Town == "" {
		return out, eris.New("groundtruth: document.town is required")
	}
	if len(env.Requirements) == 0 {
		return out, eris.New("groundtruth: requirements list is empty")
	}

	doc := env.Document
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.DocumentName == "" {
		doc.DocumentName = doc.Town
	}
	doc.NumberOfZones = len(env.Requirements)

	reqs := make([]model.GroundTruthRequirement, len(env.Requirements))
	for j, r := range env.Requirements {
		r.Zone = strings.TrimSpace(correct.CleanMarkers(r.Zone))
		if r.Zone == "" {
			return out, eris.Errorf("groundtruth: requirement %d has no zone", j)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.GroundTruthDocID = doc.ID
		reqs[j] = r
	}

	if err := i.save(ctx, &doc, reqs); err != nil {
		return out, err
	}
	out.Documents = 1
	out.Requirements = len(reqs)
	return out, nil
}

func (i *Importer) save(ctx context.Context, doc *model.GroundTruthDocument, reqs []model.GroundTruthRequirement) error {
	if err := i.store.CreateGroundTruthDoc(ctx, doc); err != nil {
		return eris.Wrapf(err, "groundtruth: create document %s", doc.DocumentName)
	}
	if err := i.store.ReplaceGroundTruthRequirements(ctx, doc.ID, reqs); err != nil {
		return eris.Wrapf(err, "groundtruth: store requirements for %s", doc.DocumentName)
	}
	return nil
}

func columnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

func asRecord(headers []string, row []string) map[string]string {
	record := make(map[string]string, len(headers))
	for j, h := range headers {
		if j < len(row) {
			record[h] = row[j]
		}
	}
	return record
}

func fillMeta(doc *model.GroundTruthDocument, record map[string]string) {
	set := func(dst *string, key string) {
		if *dst == "" {
			if v := strings.TrimSpace(record[key]); v != "" {
				*dst = v
			}
		}
	}
	set(&doc.Town, colTown)
	set(&doc.County, colCounty)
	set(&doc.State, colState)
	set(&doc.Description, colDescription)
	set(&doc.VerifiedBy, colVerifiedBy)
	if v := strings.ToLower(strings.TrimSpace(record[colComplexity])); v != "" {
		doc.Complexity = v
	}
}

// parseNumber reads a workbook cell as a number. Thousands separators and a
// leading dollar sign are tolerated; anything else non-numeric is treated as
// unset, matching how curated sheets mark gaps ("n/a", "-").
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
