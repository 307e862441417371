package domain

import (
	"context"

	"citybuilder/internal/catalog"
)

// Snapshot is the raw stored state of one player
type Snapshot struct {
	PlayerID     string
	Resources    Resources
	HasResources bool
	CityRaw      []byte
	HasCity      bool
	WorldRaw     []byte
	HasWorld     bool
}

// Commit is one atomic write-back. Nil members are left untouched.
type Commit struct {
	Resources *Resources
	City      City
	World     *World
	Ledger    *LedgerEntry
	Receipt   *Receipt
}

// Empty reports whether the commit writes nothing
func (c *Commit) Empty() bool {
	return c.Resources == nil && c.City == nil && c.World == nil && c.Ledger == nil && c.Receipt == nil
}

// PlayerStore defines the persistence operations for player state
type PlayerStore interface {
	Load(ctx context.Context, playerID string) (*Snapshot, error)
	Exists(ctx context.Context, playerID string) (bool, error)
	Commit(ctx context.Context, playerID string, c *Commit) error
	Delete(ctx context.Context, playerID string) error
	LookupReceipt(ctx context.Context, playerID, op, token string) ([]byte, bool, error)
	Ledger(ctx context.Context, playerID string, limit int) ([]LedgerEntry, error)
}

// PlayerLock is a held per-player critical section. Release must be safe to
// call more than once.
type PlayerLock interface {
	Release(ctx context.Context)
}

// PlayerLocker hands out per-player critical sections
type PlayerLocker interface {
	Acquire(ctx context.Context, playerID string) (PlayerLock, error)
}

// LedgerArchive receives committed ledger entries for long-term storage and
// serves history older than the capped store list
type LedgerArchive interface {
	Archive(ctx context.Context, playerID string, entry LedgerEntry) error
	Entries(ctx context.Context, playerID string, limit int64) ([]LedgerEntry, error)
}

// CityUseCase defines the gameplay operations on a player's city
type CityUseCase interface {
	NewGame(ctx context.Context, playerID string) (*NewGameResult, error)
	GetCity(ctx context.Context, playerID string) (*CityView, error)
	Place(ctx context.Context, playerID string, cmd PlaceCommand) (*PlaceResult, error)
	Upgrade(ctx context.Context, playerID, buildingID string) (*UpgradeResult, error)
	Demolish(ctx context.Context, playerID, buildingID string) (*DemolishResult, error)
	Expand(ctx context.Context, playerID string, steps int) (*ExpandResult, error)
	Ledger(ctx context.Context, playerID string, limit int) ([]LedgerEntry, error)
	Catalog() map[string]catalog.EntryView
}

// ShopUseCase defines the idempotent premium currency operations
type ShopUseCase interface {
	CreditGems(ctx context.Context, cmd CreditGemsCommand) (*CreditGemsResult, error)
	ExpandWithGems(ctx context.Context, playerID string, steps int, token string) (*ExpandGemsResult, error)
}

// DevUseCase defines the development-only maintenance operations
type DevUseCase interface {
	Reset(ctx context.Context, playerID string, wipe bool) (*ResetResult, error)
	Grant(ctx context.Context, playerID string, cmd GrantCommand) (*GrantResult, error)
	Wipe(ctx context.Context, playerID string) (*WipeResult, error)
	SetRadius(ctx context.Context, playerID string, radius int) (*SetRadiusResult, error)
}
