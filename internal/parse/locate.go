package parse

import "strings"

// zoneCollectionKeys is the ordered list of keys the zone list may live
// under. First non-empty list wins.
var zoneCollectionKeys = []string{
	"zones",
	"zoning_requirements",
	"requirements",
	"extracted_zones",
	"districts",
}

// zoneMarkers identify a list element that looks like a zone record when no
// candidate key matched.
var zoneMarkers = []string{"zone", "district", "zoning", "Zone"}

// LocateZones finds the per-zone records inside a parsed document. An empty
// result is a valid outcome, not an error.
func LocateZones(root map[string]any) []map[string]any {
	if root == nil {
		return nil
	}

	for _, key := range zoneCollectionKeys {
		if list, ok := root[key].([]any); ok {
			if zones := toZoneRecords(list); len(zones) > 0 {
				return zones
			}
		}
	}

	// A bare single-zone object.
	if _, ok := root["zone"]; ok {
		return []map[string]any{root}
	}
	if _, ok := root["zone_name"]; ok {
		return []map[string]any{root}
	}

	// Last resort: any top-level list whose first element carries a zone
	// marker key.
	for _, v := range root {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			continue
		}
		if hasZoneMarker(first) {
			return toZoneRecords(list)
		}
	}

	return nil
}

func hasZoneMarker(record map[string]any) bool {
	for key := range record {
		for _, marker := range zoneMarkers {
			if marker == "Zone" {
				if strings.Contains(key, "Zone") {
					return true
				}
				continue
			}
			if strings.Contains(strings.ToLower(key), marker) {
				return true
			}
		}
	}
	return false
}

func toZoneRecords(list []any) []map[string]any {
	zones := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			zones = append(zones, m)
		}
	}
	return zones
}
