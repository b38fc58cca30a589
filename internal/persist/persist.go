// Package persist dedupes mapped zone requirements and writes them through
// an injected store. Identity is (town, county, state, zone) compared
// case-insensitively; within a batch the first record for a key wins.
package persist

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Upserter is the slice of the store the persister needs.
type Upserter interface {
	UpsertRequirement(ctx context.Context, req *model.ZoneRequirement) (created bool, err error)
}

// Location is the document location stamped onto every record of a batch.
type Location struct {
	Town   string
	County string
	State  string
}

// ResolveLocation merges location sources by priority: caller-supplied wins,
// then values extracted from the document, then a synthetic town derived
// from the filename (or job id) so records stay traceable.
func ResolveLocation(caller, extracted Location, filename, jobID string) Location {
	loc := Location{
		Town:   firstUsable(caller.Town, extracted.Town),
		County: firstUsable(caller.County, extracted.County),
		State:  firstUsable(caller.State, extracted.State),
	}
	if loc.Town == "" {
		loc.Town = syntheticTown(filename, jobID)
	}
	return loc
}

func firstUsable(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "unknown") {
			continue
		}
		return v
	}
	return ""
}

func syntheticTown(filename, jobID string) string {
	if base := filepath.Base(filename); base != "." && base != "/" && base != "" {
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
			return "Unknown-" + stem
		}
	}
	if jobID != "" {
		return "Unknown-" + jobID
	}
	return "Unknown"
}

// Persister writes batches of requirements.
type Persister struct {
	store Upserter
}

// New builds a Persister on top of the given store.
func New(store Upserter) *Persister {
	return &Persister{store: store}
}

// Outcome summarizes one batch persist.
type Outcome struct {
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
}

// SaveBatch stamps loc and jobID onto each requirement, drops in-batch
// duplicates, and upserts the survivors. The store's conflict handling takes
// care of collisions with previously persisted batches. On error the partial
// outcome is returned alongside it.
func (p *Persister) SaveBatch(ctx context.Context, reqs []model.ZoneRequirement, loc Location, jobID string) (Outcome, error) {
	var out Outcome
	seen := make(map[model.RequirementKey]bool, len(reqs))

	for i := range reqs {
		req := reqs[i]
		if strings.TrimSpace(req.Zone) == "" {
			zap.L().Warn("persist: dropping record without zone", zap.String("job_id", jobID))
			continue
		}
		req.Town = loc.Town
		req.County = loc.County
		req.State = loc.State
		req.JobID = jobID
		if req.DataSource == "" {
			req.DataSource = model.DataSourceAIExtracted
		}

		key := req.Key().Normalized()
		if seen[key] {
			out.Duplicates++
			zap.L().Info("persist: skipping duplicate zone",
				zap.String("zone", req.Zone),
				zap.String("town", req.Town),
			)
			continue
		}
		seen[key] = true

		if _, err := p.store.UpsertRequirement(ctx, &req); err != nil {
			return out, eris.Wrapf(err, "persist: upsert zone %s", req.Zone)
		}
		out.Saved++
	}
	return out, nil
}
