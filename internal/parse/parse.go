// Package parse turns raw model output into a structured extraction
// document, tolerating malformed JSON and alternate wrapping. Parsing never
// returns an error: unrecoverable input degrades to a regex zone-code scan.
package parse

import (
	"encoding/json"

	"go.uber.org/zap"
)

// DefaultConfidence is assumed when the model omits extraction_confidence.
const DefaultConfidence = 0.7

// maxWrapperDepth bounds raw_response re-parsing so a self-referential
// wrapper cannot loop.
const maxWrapperDepth = 3

// Document is the structured result of parsing one model response.
type Document struct {
	// Root is the decoded top-level object; nil when even repair failed.
	Root map[string]any
	// Zones holds the located per-zone records. May be empty.
	Zones []map[string]any
	// Town, County, and State are location strings the model extracted from
	// the document body, when present.
	Town   string
	County string
	State  string
	// Confidence is the model's self-reported extraction confidence.
	Confidence float64
	// FallbackUsed reports that Zones came from the regex zone-code scan
	// rather than structured output.
	FallbackUsed bool
}

// Parse decodes raw model output. Strategies, in order: direct JSON decode;
// repaired decode (Repair); raw_response wrapper re-parse; regex zone-code
// fallback over the raw text.
func Parse(raw string) *Document {
	text := raw
	var root map[string]any

	for depth := 0; depth < maxWrapperDepth; depth++ {
		root = decodeObject(text)
		if root == nil {
			break
		}
		inner, ok := root["raw_response"].(string)
		if !ok {
			break
		}
		zap.L().Debug("parse: re-parsing raw_response wrapper", zap.Int("depth", depth+1))
		text = inner
		root = nil
	}

	doc := &Document{Root: root, Confidence: DefaultConfidence}

	if root == nil {
		doc.Zones = scanZoneCodes(text)
		doc.FallbackUsed = true
		if len(doc.Zones) > 0 {
			doc.Confidence = FallbackConfidence
		}
		zap.L().Warn("parse: structured decode failed, used zone-code fallback",
			zap.Int("zones", len(doc.Zones)),
		)
		return doc
	}

	doc.Zones = LocateZones(root)
	doc.Town = stringValue(root, "extracted_town", "town", "municipality")
	doc.County = stringValue(root, "extracted_county", "county")
	doc.State = stringValue(root, "extracted_state", "state")
	if c, ok := toFloat64(root["extraction_confidence"]); ok && c >= 0 && c <= 1 {
		doc.Confidence = c
	}
	return doc
}

// decodeObject tries a direct decode, then a repaired decode. Returns nil
// when neither yields a JSON object.
func decodeObject(text string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err == nil {
		return m
	}
	repaired := Repair(text)
	if repaired == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &m); err != nil {
		return nil
	}
	return m
}

func stringValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// toFloat64 coerces JSON-decoded values to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
