package domain

import (
	"encoding/json"
	"time"

	"citybuilder/internal/catalog"
)

// NormalizeBuilding coerces a stored building document into a Building.
// Legacy documents must go through UpgradeLegacyBuilding first.
func NormalizeBuilding(cat *catalog.Catalog, id string, fields map[string]any) *Building {
	typ := catalog.BuildingType(stringField(fields["type"]))
	if typ == "" {
		typ = cat.FallbackType
	}
	spec := cat.SpecOrFallback(typ)

	b := &Building{
		ID:        id,
		Type:      typ,
		Level:     1,
		X:         spec.DefaultX,
		Y:         spec.DefaultY,
		Footprint: cat.Footprint(typ),
	}

	if lvl, ok := intField(fields["level"]); ok && lvl > 1 {
		b.Level = lvl
	}
	if known, ok := cat.Spec(typ); ok && b.Level > known.MaxLevel {
		b.Level = known.MaxLevel
	}
	if x, ok := intField(fields["x"]); ok {
		b.X = x
	}
	if y, ok := intField(fields["y"]); ok {
		b.Y = y
	}
	if rot, ok := intField(fields["rotation"]); ok {
		b.Rotation = rot
	}

	// 업그레이드 타임스탬프는 둘 다 있거나 둘 다 없어야 함
	start := timestampField(fields["upgrade_start"])
	end := timestampField(fields["upgrade_end"])
	switch {
	case end == nil:
		start = nil
	case start == nil:
		s := *end
		start = &s
	}
	b.UpgradeStart = start
	b.UpgradeEnd = end

	return b
}

// NormalizeCity decodes a stored city document. The flag reports whether the
// canonical form differs from what was stored, i.e. whether a write-back is
// needed. An undecodable document yields an empty city.
func NormalizeCity(cat *catalog.Catalog, raw []byte) (City, bool) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return City{}, true
	}

	city := make(City, len(entries))
	changed := false
	for id, msg := range entries {
		var fields map[string]any
		if err := json.Unmarshal(msg, &fields); err != nil || fields == nil {
			fields = map[string]any{}
			changed = true
		}

		upgraded, _ := UpgradeLegacyBuilding(id, fields)
		b := NormalizeBuilding(cat, id, upgraded)
		city[id] = b

		if !sameJSON(fields, b.Record()) {
			changed = true
		}
	}
	return city, changed
}

// NormalizeWorld decodes a stored world document, falling back to a fresh
// world of defaultRadius when it is missing or undecodable.
func NormalizeWorld(raw []byte, defaultRadius int, now time.Time) (World, bool) {
	var fields map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || fields == nil {
		return NewWorld(defaultRadius, now), true
	}

	w := NewWorld(defaultRadius, now)
	if r, ok := intField(fields["radius"]); ok && r >= 0 {
		w.Radius = r
	}
	if anchor := stringField(fields["anchor"]); anchor != "" {
		w.Anchor = anchor
	}
	if created := timestampField(fields["created_at"]); created != nil {
		w.CreatedAt = *created
	}
	w.UpdatedAt = timestampField(fields["updated_at"])

	return w, !sameJSON(fields, w.Record())
}
