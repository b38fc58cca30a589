package district

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/store"
)

// AuditReport compares a municipality's published district inventory with
// the zones the pipeline extracted for it.
type AuditReport struct {
	Municipality string   `json:"municipality"`
	State        string   `json:"state"`
	Matched      int      `json:"matched"`
	Missing      []string `json:"missing,omitempty"`    // published but never extracted
	Unexpected   []string `json:"unexpected,omitempty"` // extracted but not published
}

// Coverage is the fraction of published districts the extraction found.
func (r *AuditReport) Coverage() float64 {
	total := r.Matched + len(r.Missing)
	if total == 0 {
		return 0
	}
	return float64(r.Matched) / float64(total)
}

// Audit builds the report for one municipality. Comparison is on normalized
// district codes; suffixed variants (R-1A vs R-1) count as distinct.
func (i *Importer) Audit(ctx context.Context, municipality, state string) (*AuditReport, error) {
	districts, err := i.store.ListDistricts(ctx, store.DistrictFilter{
		Municipality: municipality,
		State:        state,
	})
	if err != nil {
		return nil, eris.Wrap(err, "district: list inventory")
	}
	if len(districts) == 0 {
		return nil, eris.Errorf("district: no inventory for %s, %s", municipality, state)
	}

	reqs, err := i.store.ListRequirements(ctx, store.RequirementFilter{
		Town:  municipality,
		State: state,
	})
	if err != nil {
		return nil, eris.Wrap(err, "district: list requirements")
	}

	published := make(map[string]string, len(districts))
	for _, d := range districts {
		published[normalizeCode(d.Code)] = d.Code
	}
	extracted := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		extracted[normalizeCode(r.Zone)] = true
	}

	report := &AuditReport{Municipality: municipality, State: state}
	for norm, display := range published {
		if extracted[norm] {
			report.Matched++
		} else {
			report.Missing = append(report.Missing, display)
		}
	}
	for norm := range extracted {
		if _, ok := published[norm]; !ok {
			report.Unexpected = append(report.Unexpected, norm)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Unexpected)

	zap.L().Info("district: audit complete",
		zap.String("municipality", municipality),
		zap.Int("matched", report.Matched),
		zap.Int("missing", len(report.Missing)),
		zap.Int("unexpected", len(report.Unexpected)),
	)
	return report, nil
}

// normalizeCode uppercases and strips spacing and hyphens so "R-1", "R 1",
// and "r1" compare equal.
func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}
