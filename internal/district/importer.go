// Package district imports municipal zoning-district inventories from GIS
// shapefiles and audits extracted zone codes against them.
package district

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

// codeFieldCandidates are the attribute names the district code is published
// under, across the GIS portals we have pulled from. Checked in order.
var codeFieldCandidates = []string{"zone_code", "zoning", "zone", "district", "zn_code", "code"}

// nameFieldCandidates are the attribute names for the district's long name.
var nameFieldCandidates = []string{"zone_name", "district_name", "name", "description", "zn_desc"}

// Importer loads shapefiles into the district inventory.
type Importer struct {
	store store.Store
}

// New builds an Importer.
func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// ImportOptions name the municipality a shapefile belongs to; GIS exports
// rarely carry it in the attribute table.
type ImportOptions struct {
	Municipality string
	State        string
	// CodeField overrides attribute auto-detection when set.
	CodeField string
	// NameField overrides attribute auto-detection when set.
	NameField string
}

// ImportShapefile reads the shapefile and upserts one district per record.
// Records without a usable code are skipped; records without a usable shape
// are kept with nil geometry. Returns the number of rows written.
func (i *Importer) ImportShapefile(ctx context.Context, path string, opts ImportOptions) (int64, error) {
	if opts.Municipality == "" {
		return 0, eris.New("district: municipality is required")
	}
	if opts.State == "" {
		return 0, eris.New("district: state is required")
	}

	districts, skipped, err := ReadShapefile(path, opts)
	if err != nil {
		return 0, err
	}
	if len(districts) == 0 {
		return 0, eris.Errorf("district: shapefile %s yielded no districts", filepath.Base(path))
	}

	n, err := i.store.UpsertDistricts(ctx, districts)
	if err != nil {
		return 0, eris.Wrap(err, "district: upsert inventory")
	}

	zap.L().Info("district: shapefile imported",
		zap.String("file", filepath.Base(path)),
		zap.String("municipality", opts.Municipality),
		zap.Int64("rows", n),
		zap.Int("skipped", skipped),
	)
	return n, nil
}

// ReadShapefile parses the shapefile into district rows without touching the
// store. skipped counts records missing a district code.
func ReadShapefile(path string, opts ImportOptions) ([]model.District, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "district: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for idx, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = idx
	}

	codeIdx, err := resolveField(fieldIdx, opts.CodeField, codeFieldCandidates)
	if err != nil {
		return nil, 0, err
	}
	// The long name is optional.
	nameIdx, _ := resolveField(fieldIdx, opts.NameField, nameFieldCandidates)

	now := time.Now().UTC()
	source := filepath.Base(path)
	var districts []model.District
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		code := attribute(reader, codeIdx)
		if code == "" {
			skipped++
			continue
		}

		geometry, encErr := encodeEWKB(shape)
		if encErr != nil {
			zap.L().Warn("district: dropping unencodable geometry",
				zap.String("code", code), zap.Error(encErr))
			geometry = nil
		}

		districts = append(districts, model.District{
			ID:           uuid.NewString(),
			Municipality: opts.Municipality,
			State:        opts.State,
			Code:         code,
			Name:         attribute(reader, nameIdx),
			Geometry:     geometry,
			SourceFile:   source,
			ImportedAt:   now,
		})
	}

	return districts, skipped, nil
}

func resolveField(fieldIdx map[string]int, override string, candidates []string) (int, error) {
	if override != "" {
		if idx, ok := fieldIdx[strings.ToLower(override)]; ok {
			return idx, nil
		}
		return -1, eris.Errorf("district: attribute %q not present in shapefile", override)
	}
	for _, c := range candidates {
		if idx, ok := fieldIdx[c]; ok {
			return idx, nil
		}
	}
	return -1, eris.Errorf("district: no code attribute found (tried %s)", strings.Join(candidates, ", "))
}

func attribute(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}
