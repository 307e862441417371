package domain

import "citybuilder/internal/catalog"

// PlaceCommand asks for a new building at (X, Y)
type PlaceCommand struct {
	Type     string
	X        int
	Y        int
	Rotation *int
}

// CreditGemsCommand credits purchased gems to a player
type CreditGemsCommand struct {
	PlayerID   string
	Gems       int64
	Provider   string
	PurchaseID string
	Token      string
}

// Grant modes
const (
	GrantAdd = "add"
	GrantSet = "set"
)

// GrantCommand adds to or overwrites resources
type GrantCommand struct {
	Gold *float64
	Wood *float64
	Gems *int64
	Mode string
}

// NewGameResult is the initial state of a freshly created player
type NewGameResult struct {
	UserID     string                    `json:"user_id"`
	Resources  ResourceRecord            `json:"resources"`
	Buildings  map[string]BuildingRecord `json:"buildings"`
	World      WorldRecord               `json:"world"`
	ServerTime float64                   `json:"server_time"`
}

// CityView is the reconciled state of a city
type CityView struct {
	UserID     string                       `json:"user_id"`
	Resources  ResourceView                 `json:"resources"`
	Buildings  map[string]BuildingRecord    `json:"buildings"`
	World      WorldView                    `json:"world"`
	Catalog    map[string]catalog.EntryView `json:"catalog"`
	ServerTime float64                      `json:"server_time"`
}

// PlaceResult describes a placed building
type PlaceResult struct {
	Message    string  `json:"message"`
	BuildingID string  `json:"building_id"`
	CostGold   float64 `json:"cost_gold"`
	ServerTime float64 `json:"server_time"`
	Unlimited  bool    `json:"unlimited"`
}

// UpgradeResult describes a started upgrade
type UpgradeResult struct {
	Message         string  `json:"message"`
	CostGold        float64 `json:"cost_gold"`
	DurationSeconds float64 `json:"duration_seconds"`
	FinishTime      float64 `json:"finish_time"`
	ServerTime      float64 `json:"server_time"`
	Unlimited       bool    `json:"unlimited"`
}

// DemolishResult describes a removed building
type DemolishResult struct {
	Message    string  `json:"message"`
	RefundGold float64 `json:"refund_gold"`
	ServerTime float64 `json:"server_time"`
	Unlimited  bool    `json:"unlimited"`
}

// ExpandResult describes a gold-paid world expansion
type ExpandResult struct {
	Message    string  `json:"message"`
	NewRadius  int     `json:"new_radius"`
	CostGold   float64 `json:"cost_gold"`
	ServerTime float64 `json:"server_time"`
	Unlimited  bool    `json:"unlimited"`
}

// ExpandGemsResult describes a gem-paid world expansion
type ExpandGemsResult struct {
	Message    string  `json:"message"`
	NewRadius  int     `json:"new_radius"`
	CostGems   int64   `json:"cost_gems"`
	Gems       int64   `json:"gems"`
	ServerTime float64 `json:"server_time"`

	// Replayed is set when the result came from the idempotency cache.
	Replayed bool `json:"-"`
}

// CreditGemsResult describes a gem purchase credit
type CreditGemsResult struct {
	Message    string  `json:"message"`
	UserID     string  `json:"user_id"`
	GemsAdded  int64   `json:"gems_added"`
	Gems       int64   `json:"gems"`
	ServerTime float64 `json:"server_time"`

	// Replayed is set when the result came from the idempotency cache.
	Replayed bool `json:"-"`
}

// ResetResult is the state after a dev reset
type ResetResult struct {
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	UserID     string         `json:"user_id"`
	Resources  ResourceRecord `json:"resources"`
	World      WorldRecord    `json:"world"`
	ServerTime float64        `json:"server_time"`
}

// GrantResult is the state after a dev grant
type GrantResult struct {
	Status     string  `json:"status"`
	UserID     string  `json:"user_id"`
	Gold       float64 `json:"gold"`
	Wood       float64 `json:"wood"`
	Gems       int64   `json:"gems"`
	ServerTime float64 `json:"server_time"`
}

// WipeResult confirms a dev wipe
type WipeResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	UserID     string  `json:"user_id"`
	ServerTime float64 `json:"server_time"`
}

// SetRadiusResult is the world after a dev radius change
type SetRadiusResult struct {
	Status     string      `json:"status"`
	UserID     string      `json:"user_id"`
	World      WorldRecord `json:"world"`
	ServerTime float64     `json:"server_time"`
}
