package correct

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Table is the versioned lookup of previously observed contamination
// instances. The version string travels into audit logs so a revised table
// can be distinguished from a code change.
type Table struct {
	Version       string              `yaml:"version"`
	Substitutions map[float64]float64 `yaml:"substitutions"`
}

// DefaultTable returns the built-in table of observed contaminations.
func DefaultTable() Table {
	return Table{
		Version: "v1",
		Substitutions: map[float64]float64{
			15000: 5000,
			28000: 8000,
		},
	}
}

// Lookup returns the known-good substitute for an observed contaminated
// value.
func (t Table) Lookup(v float64) (float64, bool) {
	sub, ok := t.Substitutions[v]
	return sub, ok
}

// LoadTable reads a substitution table from a YAML file, replacing the
// built-in one. Missing version or empty substitutions are rejected so a
// half-written file cannot silently disable the rule.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, eris.Wrapf(err, "correct: read table %s", path)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, eris.Wrap(err, "correct: parse table")
	}
	if t.Version == "" {
		return Table{}, eris.New("correct: table missing version")
	}
	if len(t.Substitutions) == 0 {
		return Table{}, eris.New("correct: table has no substitutions")
	}
	return t, nil
}
