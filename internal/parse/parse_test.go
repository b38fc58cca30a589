package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormed(t *testing.T) {
	raw := `{"extracted_town":"Maple Shade","extracted_county":"Burlington","zones":[{"zone":"R-1","interior_lots":{"min_lot_area_sqft":7500}}],"extraction_confidence":0.9}`

	doc := Parse(raw)
	require.NotNil(t, doc.Root)
	require.Len(t, doc.Zones, 1)
	assert.Equal(t, "R-1", doc.Zones[0]["zone"])
	assert.Equal(t, "Maple Shade", doc.Town)
	assert.Equal(t, "Burlington", doc.County)
	assert.InDelta(t, 0.9, doc.Confidence, 1e-9)
	assert.False(t, doc.FallbackUsed)
}

func TestParse_ProseAndTrailingComma(t *testing.T) {
	raw := `Here is the data: {"zones": [{"zone":"R-1", "lot_area":8000}], }`

	doc := Parse(raw)
	require.NotNil(t, doc.Root)
	require.Len(t, doc.Zones, 1)
	assert.Equal(t, "R-1", doc.Zones[0]["zone"])
	assert.Equal(t, float64(8000), doc.Zones[0]["lot_area"])
	assert.False(t, doc.FallbackUsed)
}

func TestParse_RecoveredEqualsWellFormed(t *testing.T) {
	clean := `{"zones":[{"zone":"B-2","principal_front_yard_ft":25}]}`
	dirty := "```json\n" + `{"zones":[{"zone":"B-2","principal_front_yard_ft":25},]}` + "\n```"

	cleanDoc := Parse(clean)
	dirtyDoc := Parse(dirty)
	require.Len(t, cleanDoc.Zones, 1)
	require.Len(t, dirtyDoc.Zones, 1)
	assert.Equal(t, cleanDoc.Zones[0], dirtyDoc.Zones[0])
}

func TestParse_RawResponseWrapper(t *testing.T) {
	raw := `{"raw_response": "{\"zones\":[{\"zone\":\"C-1\",\"max_height_feet_total\":35}]}", "zones": [], "extraction_confidence": 0.5}`

	doc := Parse(raw)
	require.Len(t, doc.Zones, 1)
	assert.Equal(t, "C-1", doc.Zones[0]["zone"])
	assert.False(t, doc.FallbackUsed)
}

func TestParse_WrapperWithUnparsableInnerFallsBack(t *testing.T) {
	raw := `{"raw_response": "The ordinance defines districts R-1 and C-2 as follows...", "zones": []}`

	doc := Parse(raw)
	assert.True(t, doc.FallbackUsed)
	require.Len(t, doc.Zones, 2)
	assert.Equal(t, "R-1", doc.Zones[0]["zone"])
	assert.Equal(t, "C-2", doc.Zones[1]["zone"])
	assert.InDelta(t, FallbackConfidence, doc.Confidence, 1e-9)
}

func TestParse_UnparsableUsesZoneCodeScan(t *testing.T) {
	raw := "District R-1 requires 7,500 sq ft. District R-2 requires 10,000 sq ft. See R-1 above."

	doc := Parse(raw)
	assert.True(t, doc.FallbackUsed)
	require.Len(t, doc.Zones, 2)
	assert.Equal(t, "R-1", doc.Zones[0]["zone"])
	assert.Equal(t, "R-2", doc.Zones[1]["zone"])
	assert.Equal(t, FallbackConfidence, doc.Zones[0]["extraction_confidence"])
}

func TestParse_NothingRecoverable(t *testing.T) {
	doc := Parse("no districts mentioned here at all")
	assert.True(t, doc.FallbackUsed)
	assert.Empty(t, doc.Zones)
}

func TestParse_TruncatedOutput(t *testing.T) {
	raw := `{"zones":[{"zone":"R-3","interior_lots":{"min_lot_area_sqft":12000`

	doc := Parse(raw)
	require.NotNil(t, doc.Root)
	require.Len(t, doc.Zones, 1)
	assert.Equal(t, "R-3", doc.Zones[0]["zone"])
}

func TestLocateZones_CandidateKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		root map[string]any
		want int
	}{
		{
			name: "zoning_requirements key",
			root: map[string]any{"zoning_requirements": []any{map[string]any{"zone": "R-1"}}},
			want: 1,
		},
		{
			name: "extracted_zones key",
			root: map[string]any{"extracted_zones": []any{map[string]any{"zone": "A"}, map[string]any{"zone": "B"}}},
			want: 2,
		},
		{
			name: "single zone wrapped",
			root: map[string]any{"zone": "R-1", "interior_min_lot_area_sqft": float64(5000)},
			want: 1,
		},
		{
			name: "zone_name single wrapped",
			root: map[string]any{"zone_name": "C-1"},
			want: 1,
		},
		{
			name: "marker scan on unknown key",
			root: map[string]any{"results": []any{map[string]any{"district_code": "R-1"}}},
			want: 1,
		},
		{
			name: "no zones",
			root: map[string]any{"summary": "nothing extracted"},
			want: 0,
		},
		{
			name: "list of non-objects ignored",
			root: map[string]any{"zones": []any{"R-1", "R-2"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, LocateZones(tt.root), tt.want)
		})
	}
}
