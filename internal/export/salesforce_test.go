package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/salesforce"
)

type fakeStore struct {
	store.Store

	reqs    []model.ZoneRequirement
	listErr error
}

func (s *fakeStore) ListRequirements(_ context.Context, _ store.RequirementFilter) ([]model.ZoneRequirement, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.reqs, nil
}

type fakeSF struct {
	existing map[string]string

	inserted []map[string]any
	updated  []salesforce.CollectionRecord
	describe *salesforce.SObjectDescription

	queryErr  error
	insertErr error
	rejectAll bool
}

func (f *fakeSF) Query(_ context.Context, _ string, out any) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	records := out.(*[]salesforce.ExistingRecord)
	for key, id := range f.existing {
		*records = append(*records, salesforce.ExistingRecord{ID: id, ExternalKey: key})
	}
	return nil
}

func (f *fakeSF) InsertCollection(_ context.Context, _ string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, records...)
	results := make([]salesforce.CollectionResult, len(records))
	for i := range results {
		results[i] = salesforce.CollectionResult{ID: "new", Success: !f.rejectAll}
		if f.rejectAll {
			results[i].Errors = []string{"REQUIRED_FIELD_MISSING"}
		}
	}
	return results, nil
}

func (f *fakeSF) UpdateCollection(_ context.Context, _ string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
	f.updated = append(f.updated, records...)
	results := make([]salesforce.CollectionResult, len(records))
	for i, r := range records {
		results[i] = salesforce.CollectionResult{ID: r.ID, Success: true}
	}
	return results, nil
}

func (f *fakeSF) DescribeSObject(_ context.Context, name string) (*salesforce.SObjectDescription, error) {
	if f.describe == nil {
		return nil, assert.AnError
	}
	return f.describe, nil
}

func requirement(town, county, state, zone string) model.ZoneRequirement {
	r := model.ZoneRequirement{
		Town:                 town,
		County:               county,
		State:                state,
		Zone:                 zone,
		DataSource:           model.DataSourceAIExtracted,
		ExtractionConfidence: 0.9,
	}
	area := 10000.0
	r.SetNumeric(model.FieldInteriorMinLotAreaSqft, &area)
	return r
}

func TestExport_InsertsAndUpdates(t *testing.T) {
	st := &fakeStore{reqs: []model.ZoneRequirement{
		requirement("Verona", "Dane", "WI", "R-1"),
		requirement("Verona", "Dane", "WI", "C-1"),
	}}
	sf := &fakeSF{existing: map[string]string{
		"verona|dane|wi|c-1": "a02",
	}}

	out, err := New(st, sf, "").Export(context.Background(), store.RequirementFilter{})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, 1, out.Updated)
	assert.Zero(t, out.Failed)

	require.Len(t, sf.inserted, 1)
	ins := sf.inserted[0]
	assert.Equal(t, "Verona R-1", ins["Name"])
	assert.Equal(t, "verona|dane|wi|r-1", ins["External_Key__c"])
	assert.Equal(t, "Verona", ins["Town__c"])
	assert.Equal(t, "R-1", ins["Zone_Code__c"])
	assert.Equal(t, model.DataSourceAIExtracted, ins["Data_Source__c"])
	assert.Equal(t, 10000.0, ins["Interior_Min_Lot_Area_Sqft__c"])
	_, hasNilField := ins["Corner_Min_Lot_Area_Sqft__c"]
	assert.False(t, hasNilField, "null numeric fields stay unset")

	require.Len(t, sf.updated, 1)
	upd := sf.updated[0]
	assert.Equal(t, "a02", upd.ID)
	assert.Equal(t, "C-1", upd.Fields["Zone_Code__c"])
	_, hasName := upd.Fields["Name"]
	assert.False(t, hasName, "Name is create-only")
}

func TestExport_NoRequirements(t *testing.T) {
	out, err := New(&fakeStore{}, &fakeSF{}, "").Export(context.Background(), store.RequirementFilter{})
	require.NoError(t, err)
	assert.Zero(t, out.Total)
}

func TestExport_ListError(t *testing.T) {
	st := &fakeStore{listErr: assert.AnError}
	_, err := New(st, &fakeSF{}, "").Export(context.Background(), store.RequirementFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list requirements")
}

func TestExport_QueryError(t *testing.T) {
	st := &fakeStore{reqs: []model.ZoneRequirement{requirement("Verona", "Dane", "WI", "R-1")}}
	sf := &fakeSF{queryErr: assert.AnError}

	_, err := New(st, sf, "").Export(context.Background(), store.RequirementFilter{})
	require.Error(t, err)
}

func TestExport_RejectedRecordsCounted(t *testing.T) {
	st := &fakeStore{reqs: []model.ZoneRequirement{
		requirement("Verona", "Dane", "WI", "R-1"),
		requirement("Verona", "Dane", "WI", "R-2"),
	}}
	sf := &fakeSF{rejectAll: true}

	out, err := New(st, sf, "").Export(context.Background(), store.RequirementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Failed)
	assert.Zero(t, out.Inserted)
}

func TestValidate(t *testing.T) {
	sf := &fakeSF{describe: &salesforce.SObjectDescription{
		Name: DefaultObject,
		Fields: []salesforce.SObjectField{
			{Name: "Id"}, {Name: "External_Key__c"},
		},
	}}
	require.NoError(t, New(&fakeStore{}, sf, "").Validate(context.Background()))
}

func TestValidate_MissingKeyField(t *testing.T) {
	sf := &fakeSF{describe: &salesforce.SObjectDescription{
		Name:   DefaultObject,
		Fields: []salesforce.SObjectField{{Name: "Id"}},
	}}
	err := New(&fakeStore{}, sf, "").Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "External_Key__c")
}

func TestValidate_DescribeError(t *testing.T) {
	err := New(&fakeStore{}, &fakeSF{}, "Custom__c").Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe Custom__c")
}

func TestSFFieldName(t *testing.T) {
	assert.Equal(t, "Interior_Min_Lot_Area_Sqft__c", sfFieldName(model.FieldInteriorMinLotAreaSqft))
	assert.Equal(t, "Maximum_Far__c", sfFieldName(model.FieldMaximumFAR))
	assert.Equal(t, "Max_Height_Stories__c", sfFieldName(model.FieldMaxHeightStories))
}

func TestExternalKey(t *testing.T) {
	r := requirement(" Verona ", "Dane", "WI", "R-1")
	assert.Equal(t, "verona|dane|wi|r-1", ExternalKey(&r))
}
