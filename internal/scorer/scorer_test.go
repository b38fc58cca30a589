package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
)

func fptr(v float64) *float64 { return &v }

func areaOnlyScorer() *Scorer {
	return New(Config{Fields: []model.NumericField{model.FieldInteriorMinLotAreaSqft}})
}

func TestScore_PerfectMatch(t *testing.T) {
	s := New(DefaultConfig())

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{
			InteriorMinLotAreaSqft: fptr(8000),
			PrincipalFrontYardFt:   fptr(30),
		}},
		{Zone: "C-1", RequirementFields: model.RequirementFields{
			InteriorMinLotAreaSqft: fptr(10000),
		}},
	}
	extracted := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{
			InteriorMinLotAreaSqft: fptr(8000),
			PrincipalFrontYardFt:   fptr(30),
		}},
		{Zone: "C-1", RequirementFields: model.RequirementFields{
			InteriorMinLotAreaSqft: fptr(10000),
		}},
	}

	scores := s.Score(extracted, nil, truth)
	assert.InDelta(t, 1.0, scores.Zone, 1e-9)
	assert.InDelta(t, 1.0, scores.Field, 1e-9)
	assert.InDelta(t, 1.0, scores.Overall, 1e-9)
	assert.InDelta(t, 1.0, scores.Location, 1e-9)
}

func TestScore_MissingZoneHalvesZoneAccuracy(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
		{Zone: "C-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(10000)}},
	}
	extracted := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}

	scores := s.Score(extracted, nil, truth)
	assert.InDelta(t, 0.5, scores.Zone, 1e-9)
	// The missed district is graded by zone accuracy alone; field accuracy
	// covers only the matched district, which is exact.
	assert.InDelta(t, 1.0, scores.Field, 1e-9)
	assert.InDelta(t, 0.4*0.5+0.6*1.0, scores.Overall, 1e-9)
}

func TestScore_UnmatchedZonesExcludedFromFieldAccuracy(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
		{Zone: "C-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(10000)}},
		{Zone: "I-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(40000)}},
	}
	// One exact match, one half-off match, one district missed entirely.
	extracted := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
		{Zone: "C-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(5000)}},
	}

	scores := s.Score(extracted, nil, truth)
	assert.InDelta(t, 2.0/3.0, scores.Zone, 1e-9)
	// Field accuracy averages the two matched districts only: 1.0 and 0.5.
	assert.InDelta(t, 0.75, scores.Field, 1e-9)
}

func TestScore_NoZonesMatched(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}
	extracted := []model.ZoneRequirement{
		{Zone: "C-9", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}

	scores := s.Score(extracted, nil, truth)
	assert.InDelta(t, 0.0, scores.Zone, 1e-9)
	assert.InDelta(t, 0.0, scores.Field, 1e-9)
	assert.InDelta(t, 0.0, scores.Overall, 1e-9)
}

func TestScore_FieldTolerance(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}

	within := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8200)}},
	}
	scores := s.Score(within, nil, truth)
	assert.InDelta(t, 1.0, scores.Field, 1e-9)

	beyond := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(9200)}},
	}
	scores = s.Score(beyond, nil, truth)
	// 15% off scores 1 - 0.15.
	assert.InDelta(t, 0.85, scores.Field, 1e-9)
	assert.InDelta(t, 0.4*1.0+0.6*0.85, scores.Overall, 1e-9)
}

func TestScore_NullAgreement(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{{Zone: "R-1"}}

	bothNull := []model.ZoneRequirement{{Zone: "R-1"}}
	assert.InDelta(t, 1.0, s.Score(bothNull, nil, truth).Field, 1e-9)

	oneSided := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(5000)}},
	}
	assert.InDelta(t, 0.0, s.Score(oneSided, nil, truth).Field, 1e-9)
}

func TestScore_ZeroGroundTruthValue(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(0)}},
	}

	exact := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(0)}},
	}
	assert.InDelta(t, 1.0, s.Score(exact, nil, truth).Field, 1e-9)

	off := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(5)}},
	}
	assert.InDelta(t, 0.0, s.Score(off, nil, truth).Field, 1e-9)
}

func TestScore_ZoneMatchingIsCaseInsensitive(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "r-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}
	extracted := []model.ZoneRequirement{
		{Zone: "R-1 ", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}

	scores := s.Score(extracted, nil, truth)
	assert.InDelta(t, 1.0, scores.Zone, 1e-9)
	assert.InDelta(t, 1.0, scores.Field, 1e-9)
}

func TestScore_ZoneMatchingStripsFootnoteMarkers(t *testing.T) {
	s := areaOnlyScorer()

	// Ground truth entered from a printed table keeps the footnote marker;
	// the extraction pipeline strips it.
	truth := []model.GroundTruthRequirement{
		{Zone: "R-1¹", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
		{Zone: "C-1 (2)", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(10000)}},
	}
	extracted := []model.ZoneRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
		{Zone: "C-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(10000)}},
	}

	scores := s.Score(extracted, nil, truth)
	assert.InDelta(t, 1.0, scores.Zone, 1e-9)
	assert.InDelta(t, 1.0, scores.Field, 1e-9)
}

func TestScore_EmptyTruthScoresZero(t *testing.T) {
	s := New(DefaultConfig())

	extracted := []model.ZoneRequirement{{Zone: "R-1"}}
	scores := s.Score(extracted, nil, nil)
	assert.Zero(t, scores.Overall)
	assert.Zero(t, scores.Zone)
	assert.Zero(t, scores.Field)
	assert.Zero(t, scores.Location)
}

func TestScore_LocationAccuracy(t *testing.T) {
	s := areaOnlyScorer()

	truth := []model.GroundTruthRequirement{
		{Zone: "R-1", RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)}},
	}
	doc := &model.GroundTruthDocument{Town: "Montclair", County: "Essex", State: "NJ"}

	match := []model.ZoneRequirement{{
		Zone:              "R-1",
		Town:              "montclair",
		County:            "Essex",
		State:             "nj",
		RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)},
	}}
	scores := s.Score(match, doc, truth)
	assert.InDelta(t, 1.0, scores.Location, 1e-9)

	wrongTown := []model.ZoneRequirement{{
		Zone:              "R-1",
		Town:              "Verona",
		County:            "Essex",
		State:             "NJ",
		RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)},
	}}
	scores = s.Score(wrongTown, doc, truth)
	assert.InDelta(t, 2.0/3.0, scores.Location, 1e-9)
	// Location never feeds the overall blend.
	assert.InDelta(t, 1.0, scores.Overall, 1e-9)

	// Components the extraction left blank are not graded.
	partial := []model.ZoneRequirement{{
		Zone:              "R-1",
		Town:              "Montclair",
		RequirementFields: model.RequirementFields{InteriorMinLotAreaSqft: fptr(8000)},
	}}
	scores = s.Score(partial, doc, truth)
	assert.InDelta(t, 1.0, scores.Location, 1e-9)
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	require.Equal(t, DefaultTolerancePercent, s.tolerance)
	assert.Equal(t, DefaultComparableFields(), s.fields)
}
