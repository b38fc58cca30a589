package store

import (
	"fmt"
	"strings"

	"github.com/sells-group/zoning-cli/internal/model"
)

// numericColumns returns the 29 canonical numeric column names in storage
// order. Column names are the canonical field names themselves.
func numericColumns() []string {
	cols := make([]string, len(model.NumericFields))
	for i, f := range model.NumericFields {
		cols[i] = string(f)
	}
	return cols
}

// numericColumnDDL renders the numeric columns for a CREATE TABLE body.
func numericColumnDDL(indent string) string {
	var b strings.Builder
	for _, col := range numericColumns() {
		fmt.Fprintf(&b, "%s%s DOUBLE PRECISION,\n", indent, col)
	}
	return b.String()
}

// requirementColumns is the full column list for zoning_requirements in
// insert order: identity and provenance first, then the numeric block, then
// timestamps.
func requirementColumns() []string {
	cols := []string{
		"id", "job_id",
		"town", "county", "state", "zone",
		"town_key", "county_key", "state_key", "zone_key",
	}
	cols = append(cols, numericColumns()...)
	return append(cols, "data_source", "extraction_confidence", "created_at", "updated_at")
}

// groundTruthColumns is the column list for ground_truth_requirements in
// insert order.
func groundTruthColumns() []string {
	cols := []string{"id", "ground_truth_doc_id", "zone", "zone_description"}
	cols = append(cols, numericColumns()...)
	return append(cols, "created_at")
}

// dollarPlaceholders renders $1..$n for Postgres statements.
func dollarPlaceholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// questionPlaceholders renders ?, ?, ... for SQLite statements.
func questionPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
