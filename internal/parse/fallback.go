package parse

import "regexp"

// FallbackConfidence is assigned to zone stubs recovered by the regex scan.
const FallbackConfidence = 0.2

// zoneCodePattern matches letter-digit district codes: R-1, C-2, AG-80,
// R1, B-3A.
var zoneCodePattern = regexp.MustCompile(`\b([A-Z]{1,3}-?\d{1,3}[A-Z]?)\b`)

// scanZoneCodes pulls district codes out of unparsable text and emits
// minimal zone stubs so the pipeline still produces output. Order of first
// appearance is preserved; duplicates are collapsed.
func scanZoneCodes(text string) []map[string]any {
	matches := zoneCodePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	zones := make([]map[string]any, 0, len(matches))
	for _, code := range matches {
		if seen[code] {
			continue
		}
		seen[code] = true
		zones = append(zones, map[string]any{
			"zone":                  code,
			"extraction_confidence": FallbackConfidence,
		})
	}
	return zones
}
