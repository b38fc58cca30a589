// Package correct repairs a specific numeric-corruption pattern in extracted
// zoning values: footnote markers adjacent to a zone name fused onto a
// neighboring number during generation or text extraction (true 5,000
// rendered as "15000"). The repair is a bounded heuristic, not a guarantee;
// every change is logged with the rule that fired so mis-corrections can be
// audited.
package correct

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Rule names recorded on corrections.
const (
	RuleKnownTable      = "known_table"
	RuleFiveDigit       = "five_digit_prefix"
	RuleZoneDigit       = "zone_digit_prefix"
	RuleOverlargePrefix = "overlarge_prefix"
)

// Config bounds the prefix-stripping rules. The plausible range is
// empirically chosen for residential lots and may reject legitimate
// large-lot zones, so it is configuration rather than a constant.
type Config struct {
	MinPlausible       float64 `yaml:"min_plausible" mapstructure:"min_plausible"`
	MaxPlausible       float64 `yaml:"max_plausible" mapstructure:"max_plausible"`
	OverlargeThreshold float64 `yaml:"overlarge_threshold" mapstructure:"overlarge_threshold"`
}

// DefaultConfig returns the standard residential-lot bounds.
func DefaultConfig() Config {
	return Config{
		MinPlausible:       1_000,
		MaxPlausible:       50_000,
		OverlargeThreshold: 100_000,
	}
}

// Correction describes one applied repair.
type Correction struct {
	Field  string
	Zone   string
	Before float64
	After  float64
	Rule   string
}

// Corrector applies the repair rules. Safe for concurrent use.
type Corrector struct {
	cfg   Config
	table Table
}

// New creates a Corrector with the given bounds and substitution table.
func New(cfg Config, table Table) *Corrector {
	if cfg.MinPlausible <= 0 {
		cfg.MinPlausible = DefaultConfig().MinPlausible
	}
	if cfg.MaxPlausible <= cfg.MinPlausible {
		cfg.MaxPlausible = DefaultConfig().MaxPlausible
	}
	if cfg.OverlargeThreshold <= cfg.MaxPlausible {
		cfg.OverlargeThreshold = DefaultConfig().OverlargeThreshold
	}
	return &Corrector{cfg: cfg, table: table}
}

var (
	caretMarker = regexp.MustCompile(`\^\d+`)
	parenMarker = regexp.MustCompile(`\(\d+\)`)
	numberToken = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

var superscripts = map[rune]bool{
	'⁰': true, '¹': true, '²': true, '³': true, '⁴': true,
	'⁵': true, '⁶': true, '⁷': true, '⁸': true, '⁹': true,
}

// CleanMarkers strips superscript digits, ^<digit> sequences, and (<digit>)
// sequences from a string.
func CleanMarkers(s string) string {
	s = caretMarker.ReplaceAllString(s, "")
	s = parenMarker.ReplaceAllString(s, "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if superscripts[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ZoneName cleans a zone identifier: footnote markers stripped, whitespace
// trimmed ("R-1¹" becomes "R-1").
func (c *Corrector) ZoneName(name string) string {
	return strings.TrimSpace(CleanMarkers(name))
}

// Number coerces a raw extracted value into a corrected numeric value.
// Returns nil when the value cannot be safely treated as a number. The
// second return describes the applied repair, nil when untouched.
// zone is the owning zone's cleaned name; field names the column for the
// audit trail.
func (c *Corrector) Number(field string, raw any, zone string) (*float64, *Correction) {
	v, ok := coerce(raw)
	if !ok {
		return nil, nil
	}

	if repaired, rule, hit := c.repair(v, zone); hit {
		corr := &Correction{Field: field, Zone: zone, Before: v, After: repaired, Rule: rule}
		zap.L().Info("correct: repaired contaminated value",
			zap.String("field", field),
			zap.String("zone", zone),
			zap.Float64("before", v),
			zap.Float64("after", repaired),
			zap.String("rule", rule),
			zap.String("table_version", c.table.Version),
		)
		v = repaired
		return &v, corr
	}
	return &v, nil
}

// repair applies the ordered numeric rules; first hit wins.
func (c *Corrector) repair(v float64, zone string) (float64, string, bool) {
	if sub, ok := c.table.Lookup(v); ok {
		return sub, RuleKnownTable, true
	}

	digits, whole := wholeDigits(v)
	if whole && len(digits) == 5 && digits[0] >= '1' && digits[0] <= '3' {
		if stripped, ok := c.stripLeading(digits); ok {
			return stripped, RuleFiveDigit, true
		}
	}

	if whole && len(digits) >= 2 && zoneContainsDigit(zone, digits[0]) {
		if stripped, ok := c.stripLeading(digits); ok {
			return stripped, RuleZoneDigit, true
		}
	}

	if v > c.cfg.OverlargeThreshold && whole && len(digits) >= 2 {
		if stripped, ok := c.stripLeading(digits); ok {
			return stripped, RuleOverlargePrefix, true
		}
	}

	return 0, "", false
}

// stripLeading drops the first digit and accepts the result only inside the
// plausible range.
func (c *Corrector) stripLeading(digits string) (float64, bool) {
	stripped, err := strconv.ParseFloat(digits[1:], 64)
	if err != nil {
		return 0, false
	}
	if stripped < c.cfg.MinPlausible || stripped > c.cfg.MaxPlausible {
		return 0, false
	}
	return stripped, true
}

func wholeDigits(v float64) (string, bool) {
	if v <= 0 || v != math.Trunc(v) || math.IsInf(v, 0) {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

func zoneContainsDigit(zone string, digit byte) bool {
	return strings.ContainsRune(zone, rune(digit))
}

// coerce converts raw extracted values to a finite, non-negative float.
// String forms are marker-stripped first, then reduced to their leading
// numeric token ("5,000 sq ft" reads as 5000). Placeholder strings, booleans,
// and non-finite numbers coerce to nothing.
func coerce(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return finite(float64(v))
	case int64:
		return finite(float64(v))
	case string:
		s := strings.TrimSpace(CleanMarkers(v))
		switch strings.ToLower(s) {
		case "", "null", "none", "n/a", "na", "-", "unknown":
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
		token := numberToken.FindString(s)
		if token == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	default:
		return 0, false
	}
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
