package mapper

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/correct"
	"github.com/sells-group/zoning-cli/internal/model"
)

// Mapper turns raw zone records into canonical requirements by running the
// alias registry over each record and passing every resolved value through
// the numeric corrector.
type Mapper struct {
	registry  *Registry
	corrector *correct.Corrector
}

// New builds a Mapper. Nil arguments fall back to the built-in registry and
// a corrector with default settings.
func New(registry *Registry, corrector *correct.Corrector) *Mapper {
	if registry == nil {
		registry = Default()
	}
	if corrector == nil {
		corrector = correct.New(correct.DefaultConfig(), correct.DefaultTable())
	}
	return &Mapper{registry: registry, corrector: corrector}
}

// Result is one mapped zone plus the numeric corrections applied to it.
type Result struct {
	Requirement model.ZoneRequirement
	Corrections []correct.Correction
}

// MapZone maps one raw zone record. docConfidence is the document-level
// extraction confidence, used when the record carries no confidence of its
// own. The bool is false when the record has no usable zone name; such
// records cannot be keyed and are dropped.
func (m *Mapper) MapZone(record map[string]any, docConfidence float64) (Result, bool) {
	zone := m.zoneName(record)
	if zone == "" {
		zap.L().Warn("mapper: zone record has no usable name, dropping",
			zap.Int("record_keys", len(record)))
		return Result{}, false
	}

	res := Result{Requirement: model.ZoneRequirement{
		Zone:                 zone,
		DataSource:           model.DataSourceAIExtracted,
		ExtractionConfidence: m.confidence(record, docConfidence),
	}}

	for _, spec := range m.registry.Specs() {
		var val *float64
		if raw, ok := m.registry.resolveSpec(record, spec); ok {
			v, corr := m.corrector.Number(string(spec.Field), raw, zone)
			val = v
			if corr != nil {
				res.Corrections = append(res.Corrections, *corr)
			}
		}
		if val == nil && spec.FallbackTo != "" {
			if src := res.Requirement.Numeric(spec.FallbackTo); src != nil {
				v := *src
				val = &v
			}
		}
		if val != nil && spec.Integer {
			v := math.Trunc(*val)
			val = &v
		}
		res.Requirement.SetNumeric(spec.Field, val)
	}
	return res, true
}

func (m *Mapper) zoneName(record map[string]any) string {
	for _, key := range zoneNameKeys {
		v, ok := record[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if cleaned := m.corrector.ZoneName(s); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

func (m *Mapper) confidence(record map[string]any, docConfidence float64) float64 {
	for _, key := range confidenceKeys {
		v, ok := record[key]
		if !ok {
			continue
		}
		if f, ok := asFloat(v); ok {
			return clamp01(f)
		}
	}
	return clamp01(docConfidence)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
