// Package export pushes extracted zoning requirements into Salesforce.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/salesforce"
)

// DefaultObject is the custom object requirements land in.
const DefaultObject = "Zoning_Requirement__c"

// Exporter upserts zoning requirements into a Salesforce custom object,
// keyed by an external composite key so re-exports update in place.
type Exporter struct {
	store  store.Store
	client salesforce.Client
	object string
}

// New builds an Exporter targeting the given object; empty object falls back
// to DefaultObject.
func New(st store.Store, client salesforce.Client, object string) *Exporter {
	if object == "" {
		object = DefaultObject
	}
	return &Exporter{store: st, client: client, object: object}
}

// Outcome summarizes one export run.
type Outcome struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Validate describes the target object and confirms the external key field
// exists before a run writes anything.
func (e *Exporter) Validate(ctx context.Context) error {
	desc, err := e.client.DescribeSObject(ctx, e.object)
	if err != nil {
		return eris.Wrapf(err, "export: describe %s", e.object)
	}
	for _, f := range desc.Fields {
		if f.Name == "External_Key__c" {
			return nil
		}
	}
	return eris.Errorf("export: object %s has no External_Key__c field", e.object)
}

// Export pushes every requirement matching the filter. Existing Salesforce
// rows (matched on external key) are updated; the rest are inserted.
// Per-record failures are counted, not fatal.
func (e *Exporter) Export(ctx context.Context, filter store.RequirementFilter) (*Outcome, error) {
	reqs, err := e.store.ListRequirements(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "export: list requirements")
	}
	if len(reqs) == 0 {
		return &Outcome{}, nil
	}

	keys := make([]string, len(reqs))
	for i, r := range reqs {
		keys[i] = ExternalKey(&r)
	}

	existing, err := salesforce.FindByExternalKeys(ctx, e.client, e.object, keys)
	if err != nil {
		return nil, err
	}

	var inserts []map[string]any
	var updates []salesforce.CollectionRecord
	for i, r := range reqs {
		fields := recordFields(&r)
		if id, ok := existing[keys[i]]; ok {
			delete(fields, "Name") // Name is set on create only
			updates = append(updates, salesforce.CollectionRecord{ID: id, Fields: fields})
		} else {
			inserts = append(inserts, fields)
		}
	}

	out := &Outcome{Total: len(reqs)}

	insertResults, err := salesforce.BulkInsert(ctx, e.client, e.object, inserts)
	if err != nil {
		return out, err
	}
	tally(insertResults, &out.Inserted, &out.Failed)

	updateResults, err := salesforce.BulkUpdate(ctx, e.client, e.object, updates)
	if err != nil {
		return out, err
	}
	tally(updateResults, &out.Updated, &out.Failed)

	zap.L().Info("export: salesforce run finished",
		zap.String("object", e.object),
		zap.Int("total", out.Total),
		zap.Int("inserted", out.Inserted),
		zap.Int("updated", out.Updated),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

func tally(results []salesforce.CollectionResult, ok, failed *int) {
	for _, r := range results {
		if r.Success {
			*ok++
		} else {
			*failed++
			zap.L().Warn("export: record rejected", zap.Strings("errors", r.Errors))
		}
	}
}

// ExternalKey derives the upsert identity from the requirement's normalized
// composite key.
func ExternalKey(r *model.ZoneRequirement) string {
	k := r.Key().Normalized()
	return strings.Join([]string{k.Town, k.County, k.State, k.Zone}, "|")
}

// recordFields maps one requirement onto the custom object's field names.
func recordFields(r *model.ZoneRequirement) map[string]any {
	fields := map[string]any{
		"Name":                     fmt.Sprintf("%s %s", r.Town, r.Zone),
		"External_Key__c":          ExternalKey(r),
		"Town__c":                  r.Town,
		"County__c":                r.County,
		"State__c":                 r.State,
		"Zone_Code__c":             r.Zone,
		"Data_Source__c":           r.DataSource,
		"Extraction_Confidence__c": r.ExtractionConfidence,
	}
	for _, name := range model.NumericFields {
		if v := r.Numeric(name); v != nil {
			fields[sfFieldName(name)] = *v
		}
	}
	return fields
}

// sfFieldName converts a canonical field name to its Salesforce API name:
// "interior_min_lot_area_sqft" → "Interior_Min_Lot_Area_Sqft__c".
func sfFieldName(name model.NumericField) string {
	parts := strings.Split(string(name), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "_") + "__c"
}
