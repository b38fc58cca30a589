// Package scorer grades extracted zone requirements against verified ground
// truth. Zone accuracy measures how many expected districts were found,
// field accuracy measures numeric agreement inside matched districts, and
// the overall score is a weighted blend of the two.
package scorer

import (
	"math"
	"strings"

	"github.com/sells-group/zoning-cli/internal/correct"
	"github.com/sells-group/zoning-cli/internal/model"
)

// Score weights. Zone recall matters, but numeric fidelity matters more.
const (
	zoneWeight  = 0.4
	fieldWeight = 0.6
)

// DefaultTolerancePercent is the numeric slack inside which a value counts
// as an exact match.
const DefaultTolerancePercent = 5.0

// DefaultComparableFields are the columns graded during field scoring.
// Ground truth sheets rarely carry the long tail (street-side yards, floor
// areas), so grading sticks to the widely populated columns.
func DefaultComparableFields() []model.NumericField {
	return []model.NumericField{
		model.FieldInteriorMinLotAreaSqft,
		model.FieldInteriorMinLotFrontageFt,
		model.FieldInteriorMinLotWidthFt,
		model.FieldInteriorMinLotDepthFt,
		model.FieldPrincipalFrontYardFt,
		model.FieldPrincipalSideYardFt,
		model.FieldPrincipalRearYardFt,
		model.FieldMaxBuildingCoveragePercent,
		model.FieldMaxLotCoveragePercent,
		model.FieldMaxHeightStories,
		model.FieldMaxHeightFeetTotal,
		model.FieldMaximumFAR,
		model.FieldMaximumDensityUnitsAcre,
	}
}

// Config tunes the scorer.
type Config struct {
	TolerancePercent float64              `yaml:"tolerance_percent" mapstructure:"tolerance_percent"`
	Fields           []model.NumericField `yaml:"fields" mapstructure:"fields"`
}

// DefaultConfig returns the standard grading setup.
func DefaultConfig() Config {
	return Config{TolerancePercent: DefaultTolerancePercent}
}

// Scorer compares extraction output with ground truth.
type Scorer struct {
	tolerance float64
	fields    []model.NumericField
}

// New builds a Scorer, filling zero config values with defaults.
func New(cfg Config) *Scorer {
	if cfg.TolerancePercent <= 0 {
		cfg.TolerancePercent = DefaultTolerancePercent
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = DefaultComparableFields()
	}
	return &Scorer{tolerance: cfg.TolerancePercent, fields: cfg.Fields}
}

// Score grades extracted zones against the ground truth requirements of one
// document. doc supplies the expected location; nil skips location grading.
// An empty truth set yields all-zero scores.
func (s *Scorer) Score(extracted []model.ZoneRequirement, doc *model.GroundTruthDocument, truth []model.GroundTruthRequirement) model.AccuracyScores {
	if len(truth) == 0 {
		return model.AccuracyScores{}
	}

	byZone := make(map[string]*model.ZoneRequirement, len(extracted))
	for i := range extracted {
		byZone[normalizeZone(extracted[i].Zone)] = &extracted[i]
	}

	scores := model.AccuracyScores{
		Zone:     s.zoneAccuracy(byZone, truth),
		Field:    s.fieldAccuracy(byZone, truth),
		Location: s.locationAccuracy(extracted, doc),
	}
	scores.Overall = zoneWeight*scores.Zone + fieldWeight*scores.Field
	return scores
}

// zoneAccuracy is the fraction of expected districts present in the
// extraction.
func (s *Scorer) zoneAccuracy(byZone map[string]*model.ZoneRequirement, truth []model.GroundTruthRequirement) float64 {
	expected := make(map[string]bool, len(truth))
	for _, gt := range truth {
		expected[normalizeZone(gt.Zone)] = true
	}
	if len(expected) == 0 {
		return 0
	}

	matched := 0
	for name := range expected {
		if _, ok := byZone[name]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(expected))
}

// fieldAccuracy averages per-field scores across every (district, field)
// pair where the district was matched. Districts the extraction missed
// contribute no field scores; they already penalize zone accuracy.
func (s *Scorer) fieldAccuracy(byZone map[string]*model.ZoneRequirement, truth []model.GroundTruthRequirement) float64 {
	var total float64
	var count int

	for i := range truth {
		gt := &truth[i]
		ext := byZone[normalizeZone(gt.Zone)]
		if ext == nil {
			continue
		}
		for _, field := range s.fields {
			count++
			total += s.compareValues(gt.Numeric(field), ext.Numeric(field))
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// compareValues grades one ground-truth/extracted pair. Agreeing nulls are a
// full match, a value on only one side is a miss, and numeric pairs score on
// percent difference: within tolerance is a full match, beyond it the score
// decays linearly to zero at 100% off.
func (s *Scorer) compareValues(gt, ext *float64) float64 {
	switch {
	case gt == nil && ext == nil:
		return 1
	case gt == nil || ext == nil:
		return 0
	}

	if *gt == 0 {
		if *ext == 0 {
			return 1
		}
		return 0
	}

	pct := math.Abs(*gt-*ext) / math.Abs(*gt) * 100
	if pct <= s.tolerance {
		return 1
	}
	return math.Max(0, 1-pct/100)
}

// locationAccuracy compares the location stamped on the extraction against
// the document's expected location. Components missing on either side are
// not graded; with nothing to grade the score stays 1.
func (s *Scorer) locationAccuracy(extracted []model.ZoneRequirement, doc *model.GroundTruthDocument) float64 {
	if doc == nil || len(extracted) == 0 {
		return 1
	}

	got := extracted[0]
	pairs := [][2]string{
		{doc.Town, got.Town},
		{doc.County, got.County},
		{doc.State, got.State},
	}

	var compared, matched int
	for _, p := range pairs {
		want, have := strings.TrimSpace(p[0]), strings.TrimSpace(p[1])
		if want == "" || have == "" {
			continue
		}
		compared++
		if strings.EqualFold(want, have) {
			matched++
		}
	}
	if compared == 0 {
		return 1
	}
	return float64(matched) / float64(compared)
}

// normalizeZone makes zone names comparable across sources: footnote
// markers stripped, whitespace trimmed, case folded. Ground truth sheets
// often keep the markers ("R-1¹") that the extraction pipeline strips.
func normalizeZone(name string) string {
	return strings.ToUpper(strings.TrimSpace(correct.CleanMarkers(name)))
}
