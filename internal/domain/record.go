package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/pkg/utils"
)

// RecordVersion is the schema version stamped on every stored record.
const RecordVersion = 1

// BuildingRecord is the stored and wire shape of a building. The id is the
// key of the enclosing city map.
type BuildingRecord struct {
	Version      int               `json:"v"`
	Type         string            `json:"type"`
	Level        int               `json:"level"`
	X            int               `json:"x"`
	Y            int               `json:"y"`
	UpgradeStart *float64          `json:"upgrade_start"`
	UpgradeEnd   *float64          `json:"upgrade_end"`
	Rotation     int               `json:"rotation"`
	Footprint    catalog.Footprint `json:"footprint"`
}

// Record converts the building to its stored shape
func (b *Building) Record() BuildingRecord {
	return BuildingRecord{
		Version:      RecordVersion,
		Type:         string(b.Type),
		Level:        b.Level,
		X:            b.X,
		Y:            b.Y,
		UpgradeStart: utils.EpochPtr(b.UpgradeStart),
		UpgradeEnd:   utils.EpochPtr(b.UpgradeEnd),
		Rotation:     b.Rotation,
		Footprint:    b.Footprint,
	}
}

// Records converts every building to its stored shape
func (c City) Records() map[string]BuildingRecord {
	out := make(map[string]BuildingRecord, len(c))
	for id, b := range c {
		out[id] = b.Record()
	}
	return out
}

// EncodeCity serializes a city document
func EncodeCity(c City) ([]byte, error) {
	data, err := json.Marshal(c.Records())
	if err != nil {
		return nil, fmt.Errorf("failed to encode city: %w", err)
	}
	return data, nil
}

// WorldRecord is the stored and wire shape of a world boundary
type WorldRecord struct {
	Version   int      `json:"v"`
	Radius    int      `json:"radius"`
	Anchor    string   `json:"anchor"`
	CreatedAt float64  `json:"created_at"`
	UpdatedAt *float64 `json:"updated_at,omitempty"`
}

// Record converts the world to its stored shape
func (w World) Record() WorldRecord {
	return WorldRecord{
		Version:   RecordVersion,
		Radius:    w.Radius,
		Anchor:    w.Anchor,
		CreatedAt: utils.EpochSeconds(w.CreatedAt),
		UpdatedAt: utils.EpochPtr(w.UpdatedAt),
	}
}

// EncodeWorld serializes a world document
func EncodeWorld(w World) ([]byte, error) {
	data, err := json.Marshal(w.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to encode world: %w", err)
	}
	return data, nil
}

// Lenient field readers for loosely typed stored documents.

func numberField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

// intField treats values outside the int32 range as missing so defaults apply.
func intField(v any) (int, bool) {
	f, ok := numberField(v)
	if !ok {
		return 0, false
	}
	f = math.Trunc(f)
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// timestampField maps null, "", 0 and garbage to nil.
func timestampField(v any) *time.Time {
	f, ok := numberField(v)
	if !ok || f <= 0 {
		return nil
	}
	t := utils.FromEpochSeconds(f)
	return &t
}

// sameJSON compares a decoded document with the JSON form of a record.
func sameJSON(decoded map[string]any, record any) bool {
	data, err := json.Marshal(record)
	if err != nil {
		return false
	}
	var canonical map[string]any
	if err := json.Unmarshal(data, &canonical); err != nil {
		return false
	}
	return reflect.DeepEqual(decoded, canonical)
}
