package district

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

type fakeStore struct {
	store.Store

	districts []model.District
	reqs      []model.ZoneRequirement
	upsertErr error
}

func (s *fakeStore) UpsertDistricts(_ context.Context, districts []model.District) (int64, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.districts = append(s.districts, districts...)
	return int64(len(districts)), nil
}

func (s *fakeStore) ListDistricts(_ context.Context, _ store.DistrictFilter) ([]model.District, error) {
	return s.districts, nil
}

func (s *fakeStore) ListRequirements(_ context.Context, _ store.RequirementFilter) ([]model.ZoneRequirement, error) {
	return s.reqs, nil
}

// square builds a closed unit-square polygon anchored at (x, y).
func square(x, y float64) *shp.Polygon {
	pts := [][]shp.Point{{
		{X: x, Y: y},
		{X: x + 1, Y: y},
		{X: x + 1, Y: y + 1},
		{X: x, Y: y + 1},
		{X: x, Y: y},
	}}
	return (*shp.Polygon)(shp.NewPolyLine(pts))
}

type shpRecord struct {
	shape shp.Shape
	attrs []string
}

// writeShapefile creates a polygon shapefile with the given attribute columns.
func writeShapefile(t *testing.T, fields []shp.Field, records []shpRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zoning.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(fields))

	for n, rec := range records {
		w.Write(rec.shape)
		for i, v := range rec.attrs {
			require.NoError(t, w.WriteAttribute(n, i, v))
		}
	}
	w.Close()
	return path
}

func zoningFields() []shp.Field {
	return []shp.Field{
		shp.StringField("ZONE_CODE", 10),
		shp.StringField("ZONE_NAME", 40),
	}
}

func TestImportShapefile(t *testing.T) {
	path := writeShapefile(t, zoningFields(), []shpRecord{
		{square(0, 0), []string{"R-1", "Single Family Residential"}},
		{square(2, 0), []string{"C-1", "Neighborhood Commercial"}},
		{square(4, 0), []string{"", "Unlabeled"}},
	})

	st := &fakeStore{}
	n, err := New(st).ImportShapefile(context.Background(), path, ImportOptions{
		Municipality: "Verona",
		State:        "WI",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, st.districts, 2)
	d := st.districts[0]
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Verona", d.Municipality)
	assert.Equal(t, "WI", d.State)
	assert.Equal(t, "R-1", d.Code)
	assert.Equal(t, "Single Family Residential", d.Name)
	assert.Equal(t, "zoning.shp", d.SourceFile)
	assert.NotEmpty(t, d.Geometry)
	assert.False(t, d.ImportedAt.IsZero())

	assert.Equal(t, "C-1", st.districts[1].Code)
}

func TestImportShapefile_RequiresMunicipality(t *testing.T) {
	_, err := New(&fakeStore{}).ImportShapefile(context.Background(), "x.shp", ImportOptions{State: "WI"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "municipality is required")
}

func TestImportShapefile_RequiresState(t *testing.T) {
	_, err := New(&fakeStore{}).ImportShapefile(context.Background(), "x.shp", ImportOptions{Municipality: "Verona"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state is required")
}

func TestImportShapefile_AllCodesBlank(t *testing.T) {
	path := writeShapefile(t, zoningFields(), []shpRecord{
		{square(0, 0), []string{"", ""}},
	})

	_, err := New(&fakeStore{}).ImportShapefile(context.Background(), path, ImportOptions{
		Municipality: "Verona",
		State:        "WI",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yielded no districts")
}

func TestImportShapefile_UpsertError(t *testing.T) {
	path := writeShapefile(t, zoningFields(), []shpRecord{
		{square(0, 0), []string{"R-1", ""}},
	})

	st := &fakeStore{upsertErr: assert.AnError}
	_, err := New(st).ImportShapefile(context.Background(), path, ImportOptions{
		Municipality: "Verona",
		State:        "WI",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert inventory")
}

func TestReadShapefile_FieldAutoDetect(t *testing.T) {
	// Portals publish under varied attribute names; "ZONING" is a common one.
	fields := []shp.Field{
		shp.StringField("OBJECTID", 10),
		shp.StringField("ZONING", 10),
		shp.StringField("NAME", 40),
	}
	path := writeShapefile(t, fields, []shpRecord{
		{square(0, 0), []string{"1", "A-1", "Agricultural"}},
	})

	districts, skipped, err := ReadShapefile(path, ImportOptions{Municipality: "Verona", State: "WI"})
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, districts, 1)
	assert.Equal(t, "A-1", districts[0].Code)
	assert.Equal(t, "Agricultural", districts[0].Name)
}

func TestReadShapefile_FieldOverride(t *testing.T) {
	fields := []shp.Field{
		shp.StringField("DIST_CD", 10),
		shp.StringField("ZONE", 10),
	}
	path := writeShapefile(t, fields, []shpRecord{
		{square(0, 0), []string{"M-1", "wrong"}},
	})

	districts, _, err := ReadShapefile(path, ImportOptions{
		Municipality: "Verona",
		State:        "WI",
		CodeField:    "DIST_CD",
	})
	require.NoError(t, err)
	require.Len(t, districts, 1)
	assert.Equal(t, "M-1", districts[0].Code)
}

func TestReadShapefile_OverrideNotPresent(t *testing.T) {
	path := writeShapefile(t, zoningFields(), []shpRecord{
		{square(0, 0), []string{"R-1", ""}},
	})

	_, _, err := ReadShapefile(path, ImportOptions{
		Municipality: "Verona",
		State:        "WI",
		CodeField:    "NOPE",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"NOPE" not present`)
}

func TestReadShapefile_NoCodeAttribute(t *testing.T) {
	fields := []shp.Field{shp.StringField("OBJECTID", 10)}
	path := writeShapefile(t, fields, []shpRecord{
		{square(0, 0), []string{"1"}},
	})

	_, _, err := ReadShapefile(path, ImportOptions{Municipality: "Verona", State: "WI"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code attribute found")
}

func TestReadShapefile_MissingFile(t *testing.T) {
	_, _, err := ReadShapefile("/nonexistent/zoning.shp", ImportOptions{Municipality: "Verona", State: "WI"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func TestAudit(t *testing.T) {
	st := &fakeStore{
		districts: []model.District{
			{Code: "R-1"}, {Code: "R-2"}, {Code: "C-1"},
		},
		reqs: []model.ZoneRequirement{
			{Zone: "R-1"},
			{Zone: "r2"}, // normalization: matches R-2
			{Zone: "X-9"},
		},
	}

	report, err := New(st).Audit(context.Background(), "Verona", "WI")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, []string{"C-1"}, report.Missing)
	assert.Equal(t, []string{"X9"}, report.Unexpected)
	assert.InDelta(t, 2.0/3.0, report.Coverage(), 1e-9)
}

func TestAudit_FullCoverage(t *testing.T) {
	st := &fakeStore{
		districts: []model.District{{Code: "R-1"}},
		reqs:      []model.ZoneRequirement{{Zone: "R-1"}},
	}

	report, err := New(st).Audit(context.Background(), "Verona", "WI")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Unexpected)
	assert.Equal(t, 1.0, report.Coverage())
}

func TestAudit_NoInventory(t *testing.T) {
	_, err := New(&fakeStore{}).Audit(context.Background(), "Nowhere", "WI")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no inventory")
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "R1", normalizeCode("r-1"))
	assert.Equal(t, "R1", normalizeCode(" R 1 "))
	assert.Equal(t, "TRC1", normalizeCode("TR-C1"))
}
