package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ExistingRecord is the slice of a Salesforce row the exporter needs to
// decide between insert and update.
type ExistingRecord struct {
	ID          string `json:"Id" salesforce:"Id"`
	ExternalKey string `json:"External_Key__c" salesforce:"External_Key__c"`
}

// soqlInLimit bounds how many literals go into one IN (...) clause. SOQL
// caps statement length, not list size; 200 keeps queries well under it.
const soqlInLimit = 200

// FindByExternalKeys returns a map of external key → Salesforce record ID
// for every key that already exists on the given object. Keys are chunked
// into multiple queries when needed.
func FindByExternalKeys(ctx context.Context, c Client, object string, keys []string) (map[string]string, error) {
	existing := make(map[string]string, len(keys))

	for start := 0; start < len(keys); start += soqlInLimit {
		end := start + soqlInLimit
		if end > len(keys) {
			end = len(keys)
		}

		quoted := make([]string, 0, end-start)
		for _, k := range keys[start:end] {
			quoted = append(quoted, "'"+escapeSoql(k)+"'")
		}

		soql := fmt.Sprintf(
			"SELECT Id, External_Key__c FROM %s WHERE External_Key__c IN (%s)",
			object, strings.Join(quoted, ", "),
		)

		var records []ExistingRecord
		if err := c.Query(ctx, soql, &records); err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("sf: find existing %s records", object))
		}
		for _, r := range records {
			existing[r.ExternalKey] = r.ID
		}
	}

	return existing, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
