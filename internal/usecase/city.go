package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/internal/domain"
	"citybuilder/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names used for metrics
const (
	opNewGame    = "new_game"
	opGetCity    = "get_city"
	opPlace      = "place"
	opUpgrade    = "upgrade"
	opDemolish   = "demolish"
	opExpand     = "expand"
	opCreditGems = domain.OpCreditGems
	opExpandGems = domain.OpExpandGems
	opReset      = "dev_reset"
	opGrant      = "dev_grant"
	opWipe       = "dev_wipe"
	opSetRadius  = "dev_set_radius"
)

// Ledger page sizes. Pages past domain.LedgerCap are served from the archive.
const (
	DefaultLedgerLimit = 50
	MaxLedgerLimit     = 10000
)

// NewGame creates a player with the starting resources, a lone townhall and
// the default world. An empty playerID gets a generated one.
func (s *CityService) NewGame(ctx context.Context, playerID string) (result *domain.NewGameResult, err error) {
	defer func() { s.observe(opNewGame, err) }()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		playerID = newPlayerID()
	}

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		exists, err := s.store.Exists(ctx, playerID)
		if err != nil {
			return err
		}
		if exists {
			return domain.NewConflictError("user_id already exists")
		}

		now := s.now()
		res := domain.NewResources(now, s.opts.Unlimited)
		city := domain.NewCity(s.catalog)
		world := domain.NewWorld(s.opts.DefaultRadius, now)

		if err := s.store.Commit(ctx, playerID, &domain.Commit{Resources: &res, City: city, World: &world}); err != nil {
			return err
		}

		result = &domain.NewGameResult{
			UserID:     playerID,
			Resources:  res.Record(),
			Buildings:  city.Records(),
			World:      world.Record(),
			ServerTime: utils.EpochSeconds(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("new game", zap.String("player_id", playerID))
	return result, nil
}

// newPlayerID returns "u_" followed by 10 hex characters
func newPlayerID() string {
	id := uuid.New()
	return "u_" + hex.EncodeToString(id[:5])
}

// GetCity loads a city, applying finished upgrades and idle production. A
// missing player is initialized on the fly.
func (s *CityService) GetCity(ctx context.Context, playerID string) (view *domain.CityView, err error) {
	defer func() { s.observe(opGetCity, err) }()

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		now := s.now()
		sess, err := s.load(ctx, playerID, now, true)
		if err != nil {
			return err
		}
		if s.opts.Unlimited && sess.hasResources {
			sess.res.RaiseToUnlimitedFloor()
		}

		s.reconcile(sess)

		// 월드는 항상 다시 기록
		c := sess.commit()
		w := sess.world
		c.World = &w
		if err := s.store.Commit(ctx, playerID, c); err != nil {
			return err
		}

		view = &domain.CityView{
			UserID:     playerID,
			Resources:  sess.res.View(),
			Buildings:  sess.city.Records(),
			World:      sess.world.View(),
			Catalog:    s.catalog.View(),
			ServerTime: utils.EpochSeconds(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Place builds a new level 1 building at (cmd.X, cmd.Y)
func (s *CityService) Place(ctx context.Context, playerID string, cmd domain.PlaceCommand) (result *domain.PlaceResult, err error) {
	defer func() { s.observe(opPlace, err) }()

	typ := catalog.BuildingType(strings.TrimSpace(cmd.Type))
	spec, ok := s.catalog.Spec(typ)
	if !ok {
		return nil, domain.NewInvalidMutationError("Unknown building type")
	}
	cost, err := spec.BuildCost()
	if err != nil {
		return nil, domain.NewConfigError(err)
	}

	rotation := 0
	if cmd.Rotation != nil {
		rotation = *cmd.Rotation
	}
	tiles := domain.FootprintTiles(cmd.X, cmd.Y, domain.EffectiveFootprint(spec.Footprint, rotation, spec.Rotatable))

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		now := s.now()
		sess, err := s.load(ctx, playerID, now, false)
		if err != nil {
			return err
		}
		if err := sess.requirePlayer(); err != nil {
			return err
		}
		s.reconcile(sess)

		if !s.opts.Unbounded && !sess.world.Bounds().Contains(tiles...) {
			return domain.NewInvalidMutationError("Out of world bounds")
		}
		if _, occupied := sess.city.OccupiedBy(s.catalog, tiles); occupied {
			return domain.NewInvalidMutationError("Position is occupied")
		}
		if !s.canAfford(cost, sess.res.Gold) {
			return domain.NewInvalidMutationError("Not enough gold to build")
		}

		id := s.newBuildingID(typ, sess.city)
		sess.city[id] = &domain.Building{
			ID:        id,
			Type:      typ,
			Level:     1,
			X:         cmd.X,
			Y:         cmd.Y,
			Rotation:  rotation,
			Footprint: spec.Footprint,
		}
		sess.cityDirty = true
		s.chargeGold(&sess.res, cost)

		if err := s.store.Commit(ctx, playerID, sess.commit()); err != nil {
			return err
		}

		s.logger.Debug("placed building",
			zap.String("player_id", playerID),
			zap.String("building_id", id),
			zap.Int("x", cmd.X),
			zap.Int("y", cmd.Y),
			zap.Float64("cost", cost),
		)
		result = &domain.PlaceResult{
			Message:    fmt.Sprintf("Built %s at (%d,%d)", typ, cmd.X, cmd.Y),
			BuildingID: id,
			CostGold:   cost,
			ServerTime: utils.EpochSeconds(now),
			Unlimited:  s.opts.Unlimited,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// newBuildingID returns "{type}_{snowflake}" not yet used in city
func (s *CityService) newBuildingID(typ catalog.BuildingType, city domain.City) string {
	for {
		id := fmt.Sprintf("%s_%s", typ, s.ids.Generate().String())
		if _, taken := city[id]; !taken {
			return id
		}
	}
}

// Upgrade starts an upgrade of buildingID to the next level
func (s *CityService) Upgrade(ctx context.Context, playerID, buildingID string) (result *domain.UpgradeResult, err error) {
	defer func() { s.observe(opUpgrade, err) }()

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		now := s.now()
		sess, err := s.load(ctx, playerID, now, false)
		if err != nil {
			return err
		}
		if err := sess.requirePlayer(); err != nil {
			return err
		}
		s.reconcile(sess)

		b, ok := sess.city[buildingID]
		if !ok {
			return domain.NewNotFoundError("Building not found")
		}
		spec, ok := s.catalog.Spec(b.Type)
		if !ok {
			return domain.NewInvalidMutationError("Unknown building type")
		}
		if b.Upgrading() {
			return domain.NewInvalidMutationError("Upgrade already running")
		}
		next := b.Level + 1
		if next > spec.MaxLevel {
			return domain.NewInvalidMutationError("Max level reached")
		}
		cost, seconds, err := spec.UpgradeStep(next)
		if err != nil {
			return domain.NewConfigError(err)
		}
		if !s.canAfford(cost, sess.res.Gold) {
			return domain.NewInvalidMutationError("Not enough gold")
		}

		s.chargeGold(&sess.res, cost)
		start := now
		end := now.Add(time.Duration(seconds * float64(time.Second)))
		b.UpgradeStart = &start
		b.UpgradeEnd = &end
		sess.cityDirty = true

		if err := s.store.Commit(ctx, playerID, sess.commit()); err != nil {
			return err
		}

		result = &domain.UpgradeResult{
			Message:         fmt.Sprintf("Upgrade %s (%s) to level %d started", b.Type, buildingID, next),
			CostGold:        cost,
			DurationSeconds: seconds,
			FinishTime:      utils.EpochSeconds(end),
			ServerTime:      utils.EpochSeconds(now),
			Unlimited:       s.opts.Unlimited,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Demolish removes a building and refunds part of its build cost
func (s *CityService) Demolish(ctx context.Context, playerID, buildingID string) (result *domain.DemolishResult, err error) {
	defer func() { s.observe(opDemolish, err) }()

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		now := s.now()
		sess, err := s.load(ctx, playerID, now, false)
		if err != nil {
			return err
		}
		if err := sess.requirePlayer(); err != nil {
			return err
		}
		s.reconcile(sess)

		b, ok := sess.city[buildingID]
		if !ok {
			return domain.NewNotFoundError("Building not found")
		}
		if b.Type == catalog.Townhall {
			return domain.NewInvalidMutationError("Townhall cannot be demolished")
		}

		refund := 0.0
		if spec, known := s.catalog.Spec(b.Type); known {
			base, err := spec.BuildCost()
			if err != nil {
				return domain.NewConfigError(err)
			}
			refund = catalog.Round(base*s.catalog.DemolishRefundRate, 2)
		}

		delete(sess.city, buildingID)
		sess.cityDirty = true
		if !s.opts.Unlimited {
			sess.res.Gold += refund
		}

		if err := s.store.Commit(ctx, playerID, sess.commit()); err != nil {
			return err
		}

		result = &domain.DemolishResult{
			Message:    fmt.Sprintf("Demolished %s (%s)", b.Type, buildingID),
			RefundGold: refund,
			ServerTime: utils.EpochSeconds(now),
			Unlimited:  s.opts.Unlimited,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateSteps checks an expansion step count
func validateSteps(steps int) error {
	if steps < 1 {
		return domain.NewInvalidMutationError("steps must be >= 1")
	}
	if steps > domain.MaxExpandStep {
		return domain.NewInvalidMutationError("Too many steps")
	}
	return nil
}

// expansionPrice quotes growing the world from radius by steps on curve. A
// target past domain.MaxRadius or a price the curve cannot represent is
// rejected before anything is mutated.
func expansionPrice(curve catalog.CostCurve, radius, steps int) (float64, error) {
	if radius+steps > domain.MaxRadius {
		return 0, domain.NewInvalidMutationError("World radius cannot exceed %d", domain.MaxRadius)
	}
	cost, err := curve.Price(radius, steps)
	if err != nil {
		return 0, domain.NewInvalidMutationError("Expansion is too expensive")
	}
	return cost, nil
}

// Expand grows the world radius by steps, paid in gold
func (s *CityService) Expand(ctx context.Context, playerID string, steps int) (result *domain.ExpandResult, err error) {
	defer func() { s.observe(opExpand, err) }()

	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		now := s.now()
		sess, err := s.load(ctx, playerID, now, false)
		if err != nil {
			return err
		}
		if err := sess.requireResources(); err != nil {
			return err
		}
		s.reconcile(sess)

		cost, err := expansionPrice(s.catalog.Expansion.Gold, sess.world.Radius, steps)
		if err != nil {
			return err
		}
		if !s.canAfford(cost, sess.res.Gold) {
			return domain.NewInvalidMutationError("Not enough gold to expand (cost %v)", cost)
		}

		s.chargeGold(&sess.res, cost)
		sess.world.Radius += steps
		sess.world.UpdatedAt = &now
		sess.worldDirty = true

		if err := s.store.Commit(ctx, playerID, sess.commit()); err != nil {
			return err
		}

		result = &domain.ExpandResult{
			Message:    fmt.Sprintf("World expanded by %d", steps),
			NewRadius:  sess.world.Radius,
			CostGold:   cost,
			ServerTime: utils.EpochSeconds(now),
			Unlimited:  s.opts.Unlimited,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ledger returns the newest ledger entries of a player. The store keeps only
// the newest domain.LedgerCap entries, so larger pages are read from the
// archive when one is attached. An archive failure falls back to the store.
func (s *CityService) Ledger(ctx context.Context, playerID string, limit int) ([]domain.LedgerEntry, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, domain.NewBadRequestError("user_id is required")
	}
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	if limit > MaxLedgerLimit {
		limit = MaxLedgerLimit
	}

	if limit > domain.LedgerCap && s.archive != nil {
		entries, err := s.archive.Entries(ctx, playerID, int64(limit))
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("failed to read ledger archive, serving capped list",
			zap.String("player_id", playerID),
			zap.Int("limit", limit),
			zap.Error(err),
		)
	}

	if limit > domain.LedgerCap {
		limit = domain.LedgerCap
	}
	return s.store.Ledger(ctx, playerID, limit)
}

// Catalog returns the client building catalog
func (s *CityService) Catalog() map[string]catalog.EntryView {
	return s.catalog.View()
}
