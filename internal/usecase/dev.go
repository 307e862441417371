package usecase

import (
	"context"
	"strings"

	"citybuilder/internal/catalog"
	"citybuilder/internal/domain"
	"citybuilder/pkg/utils"

	"go.uber.org/zap"
)

// Reset recreates the starting state of a player. With wipe set the old keys
// are removed first.
func (s *CityService) Reset(ctx context.Context, playerID string, wipe bool) (result *domain.ResetResult, err error) {
	defer func() { s.observe(opReset, err) }()

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		if wipe {
			if err := s.store.Delete(ctx, playerID); err != nil {
				return err
			}
		}

		now := s.now()
		res := domain.NewResources(now, s.opts.Unlimited)
		world := domain.NewWorld(s.opts.DefaultRadius, now)
		if err := s.store.Commit(ctx, playerID, &domain.Commit{
			Resources: &res,
			City:      domain.NewCity(s.catalog),
			World:     &world,
		}); err != nil {
			return err
		}

		result = &domain.ResetResult{
			Status:     "ok",
			Message:    "Reset done",
			UserID:     playerID,
			Resources:  res.Record(),
			World:      world.Record(),
			ServerTime: utils.EpochSeconds(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dev reset",
		zap.String("player_id", playerID),
		zap.Bool("wipe", wipe),
		zap.Bool("unlimited", s.opts.Unlimited),
	)
	return result, nil
}

// Grant adds to or overwrites the given currencies
func (s *CityService) Grant(ctx context.Context, playerID string, cmd domain.GrantCommand) (result *domain.GrantResult, err error) {
	defer func() { s.observe(opGrant, err) }()

	mode := strings.ToLower(strings.TrimSpace(cmd.Mode))
	if mode == "" {
		mode = domain.GrantAdd
	}
	if mode != domain.GrantAdd && mode != domain.GrantSet {
		return nil, domain.NewBadRequestError("mode must be add or set")
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

		res := &sess.res
		if mode == domain.GrantAdd {
			if cmd.Gold != nil {
				res.Gold += *cmd.Gold
			}
			if cmd.Wood != nil {
				res.Wood += *cmd.Wood
			}
			if cmd.Gems != nil {
				res.Gems += *cmd.Gems
			}
		} else {
			if cmd.Gold != nil {
				res.Gold = *cmd.Gold
			}
			if cmd.Wood != nil {
				res.Wood = *cmd.Wood
			}
			if cmd.Gems != nil {
				res.Gems = *cmd.Gems
			}
		}

		if err := s.store.Commit(ctx, playerID, &domain.Commit{Resources: res}); err != nil {
			return err
		}

		result = &domain.GrantResult{
			Status:     "ok",
			UserID:     playerID,
			Gold:       catalog.Round(res.Gold, 2),
			Wood:       catalog.Round(res.Wood, 2),
			Gems:       res.Gems,
			ServerTime: utils.EpochSeconds(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dev grant",
		zap.String("player_id", playerID),
		zap.String("mode", mode),
		zap.Float64p("gold", cmd.Gold),
		zap.Float64p("wood", cmd.Wood),
		zap.Int64p("gems", cmd.Gems),
	)
	return result, nil
}

// Wipe removes the player's resources, city and world without recreating them
func (s *CityService) Wipe(ctx context.Context, playerID string) (result *domain.WipeResult, err error) {
	defer func() { s.observe(opWipe, err) }()

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		return s.store.Delete(ctx, playerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dev wipe", zap.String("player_id", playerID))
	return &domain.WipeResult{
		Status:     "ok",
		Message:    "Wiped",
		UserID:     playerID,
		ServerTime: utils.EpochSeconds(s.now()),
	}, nil
}

// SetRadius overwrites the world radius
func (s *CityService) SetRadius(ctx context.Context, playerID string, radius int) (result *domain.SetRadiusResult, err error) {
	defer func() { s.observe(opSetRadius, err) }()

	if radius < 0 {
		return nil, domain.NewInvalidMutationError("radius must be >= 0")
	}
	if radius > domain.MaxRadius {
		return nil, domain.NewInvalidMutationError("radius too large")
	}

	err = s.withLock(ctx, playerID, func(ctx context.Context) error {
		now := s.now()
		sess, err := s.load(ctx, playerID, now, false)
		if err != nil {
			return err
		}

		sess.world.Radius = radius
		sess.world.UpdatedAt = &now
		world := sess.world
		if err := s.store.Commit(ctx, playerID, &domain.Commit{World: &world}); err != nil {
			return err
		}

		result = &domain.SetRadiusResult{
			Status:     "ok",
			UserID:     playerID,
			World:      world.Record(),
			ServerTime: utils.EpochSeconds(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dev set radius", zap.String("player_id", playerID), zap.Int("radius", radius))
	return result, nil
}
