package domain

import (
	"strings"

	"citybuilder/internal/catalog"
)

// legacyPrefixes are the id prefixes early clients used before buildings
// carried an explicit type.
var legacyPrefixes = []catalog.BuildingType{
	catalog.Townhall,
	catalog.Farm,
	catalog.Lumbermill,
	catalog.House,
	catalog.Barracks,
}

// InferLegacyType guesses a building type from its id. Ids matching no known
// prefix are treated as a townhall, which is what pre-versioned data assumed.
func InferLegacyType(id string) catalog.BuildingType {
	for _, t := range legacyPrefixes {
		if strings.HasPrefix(id, string(t)) {
			return t
		}
	}
	return catalog.Townhall
}

// UpgradeLegacyBuilding brings a stored building document up to
// RecordVersion. Unversioned documents without a type get one inferred from
// the id. The input map is not modified; the second result reports whether
// anything was upgraded.
func UpgradeLegacyBuilding(id string, fields map[string]any) (map[string]any, bool) {
	if v, ok := intField(fields["v"]); ok && v >= RecordVersion {
		return fields, false
	}

	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if stringField(out["type"]) == "" {
		out["type"] = string(InferLegacyType(id))
	}
	out["v"] = float64(RecordVersion)
	return out, true
}
