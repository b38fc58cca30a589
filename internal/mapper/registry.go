// Package mapper resolves canonical zoning fields from arbitrarily shaped
// zone records. The alias table is declarative data consumed by one generic
// resolver; nothing in the lookup logic knows field names.
package mapper

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Lookup names one place a canonical field may live in a raw zone record.
// Sub is a canonical sub-object name (resolved through subObjectAliases);
// empty Sub means the key sits at the top level of the record.
type Lookup struct {
	Sub string `yaml:"sub,omitempty"`
	Key string `yaml:"key"`
}

// Spec declares resolution for one canonical field: ordered lookups, then an
// optional fallback to another canonical field when every lookup resolves to
// nothing.
type Spec struct {
	Field      model.NumericField `yaml:"field"`
	Lookups    []Lookup           `yaml:"lookups"`
	FallbackTo model.NumericField `yaml:"fallback_to,omitempty"`
	// Integer marks whole-number semantics (stories).
	Integer bool `yaml:"integer,omitempty"`
}

// Registry holds the alias table. Specs are ordered so that fallback sources
// resolve before the fields that depend on them.
type Registry struct {
	specs      []Spec
	subAliases map[string][]string
}

// Default returns the built-in alias table.
func Default() *Registry {
	return &Registry{specs: defaultSpecs(), subAliases: subObjectAliases}
}

// Specs exposes the ordered field specs.
func (r *Registry) Specs() []Spec {
	return r.specs
}

// Resolve finds the raw value for a canonical field. The bool reports
// whether any alias key was present at all; a present key holding JSON null
// still counts as found.
func (r *Registry) Resolve(record map[string]any, field model.NumericField) (any, bool) {
	for _, spec := range r.specs {
		if spec.Field != field {
			continue
		}
		return r.resolveSpec(record, spec)
	}
	return nil, false
}

func (r *Registry) resolveSpec(record map[string]any, spec Spec) (any, bool) {
	for _, lk := range spec.Lookups {
		if lk.Sub == "" {
			if v, ok := record[lk.Key]; ok {
				return v, true
			}
			continue
		}
		for _, subName := range r.subNames(lk.Sub) {
			sub, ok := record[subName].(map[string]any)
			if !ok {
				continue
			}
			if v, ok := sub[lk.Key]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

func (r *Registry) subNames(canonical string) []string {
	if names, ok := r.subAliases[canonical]; ok {
		return names
	}
	return []string{canonical}
}

// overrideFile mirrors the YAML override layout: per-field lookup lists that
// replace the built-in ones. Fields absent from the file keep their
// defaults.
type overrideFile struct {
	SubObjects map[string][]string `yaml:"sub_objects,omitempty"`
	Fields     map[string]struct {
		Lookups    []Lookup `yaml:"lookups"`
		FallbackTo string   `yaml:"fallback_to,omitempty"`
	} `yaml:"fields"`
}

// LoadOverrides reads alias overrides from a YAML file and returns a
// registry with those lookups replacing the built-in ones.
func LoadOverrides(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapper: read overrides %s", path)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "mapper: parse overrides")
	}

	reg := Default()
	if len(file.SubObjects) > 0 {
		merged := make(map[string][]string, len(subObjectAliases)+len(file.SubObjects))
		for k, v := range subObjectAliases {
			merged[k] = v
		}
		for k, v := range file.SubObjects {
			merged[k] = v
		}
		reg.subAliases = merged
	}

	for i, spec := range reg.specs {
		ov, ok := file.Fields[string(spec.Field)]
		if !ok {
			continue
		}
		if len(ov.Lookups) > 0 {
			reg.specs[i].Lookups = ov.Lookups
		}
		if ov.FallbackTo != "" {
			reg.specs[i].FallbackTo = model.NumericField(ov.FallbackTo)
		}
	}
	return reg, nil
}
