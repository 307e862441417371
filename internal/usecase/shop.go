package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"citybuilder/internal/domain"
	"citybuilder/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// execIdempotent runs mutate at most once per (player, op, token). A cached
// response is decoded into out and reported as replayed; otherwise mutate
// fills out and returns the state commit, which is written together with the
// ledger entry and the cached response in one batch.
func (s *CityService) execIdempotent(
	ctx context.Context,
	playerID, op, token string,
	out any,
	mutate func(ctx context.Context, now time.Time) (*domain.Commit, error),
) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, domain.NewBadRequestError("Idempotency-Key header is required")
	}

	var (
		replayed bool
		ledger   *domain.LedgerEntry
	)
	err := s.withLock(ctx, playerID, func(ctx context.Context) error {
		cached, found, err := s.store.LookupReceipt(ctx, playerID, op, token)
		if err != nil {
			return err
		}
		if found {
			if err := json.Unmarshal(cached, out); err == nil {
				replayed = true
				return nil
			}
			s.logger.Warn("undecodable idempotency record, executing again",
				zap.String("player_id", playerID),
				zap.String("op", op),
			)
		}

		commit, err := mutate(ctx, s.now())
		if err != nil {
			return err
		}
		body, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to encode %s response: %w", op, err)
		}
		commit.Receipt = &domain.Receipt{Op: op, Token: token, Body: body, TTL: domain.IdempotentTTL}

		if err := s.store.Commit(ctx, playerID, commit); err != nil {
			return err
		}
		ledger = commit.Ledger
		return nil
	})
	if err != nil {
		return false, err
	}

	if replayed {
		s.metrics.IdempotentReplay(op)
		s.logger.Info("idempotent replay",
			zap.String("player_id", playerID),
			zap.String("op", op),
			zap.String("token", token),
		)
		return true, nil
	}
	s.archiveEntry(ctx, playerID, ledger)
	return false, nil
}

func newLedgerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreditGems credits purchased gems exactly once per idempotency token
func (s *CityService) CreditGems(ctx context.Context, cmd domain.CreditGemsCommand) (result *domain.CreditGemsResult, err error) {
	defer func() { s.observe(opCreditGems, err) }()

	if strings.TrimSpace(cmd.Token) == "" {
		return nil, domain.NewBadRequestError("Idempotency-Key header is required")
	}
	if cmd.Gems <= 0 {
		return nil, domain.NewBadRequestError("gems must be > 0")
	}
	provider := cmd.Provider
	if provider == "" {
		provider = "dev"
	}

	out := &domain.CreditGemsResult{}
	replayed, err := s.execIdempotent(ctx, cmd.PlayerID, domain.OpCreditGems, cmd.Token, out,
		func(ctx context.Context, now time.Time) (*domain.Commit, error) {
			sess, err := s.load(ctx, cmd.PlayerID, now, false)
			if err != nil {
				return nil, err
			}
			if err := sess.requireResources(); err != nil {
				return nil, err
			}

			sess.res.Gems += cmd.Gems
			var purchaseID any
			if cmd.PurchaseID != "" {
				purchaseID = cmd.PurchaseID
			}
			entry := &domain.LedgerEntry{
				ID:     newLedgerID(),
				Type:   domain.LedgerCredit,
				Reason: domain.ReasonPurchaseGems,
				Delta:  map[string]int64{"gems": cmd.Gems},
				Meta: map[string]any{
					"provider":        provider,
					"purchase_id":     purchaseID,
					"idempotency_key": strings.TrimSpace(cmd.Token),
				},
				Timestamp: utils.EpochSeconds(now),
			}

			*out = domain.CreditGemsResult{
				Message:    "Gems credited",
				UserID:     cmd.PlayerID,
				GemsAdded:  cmd.Gems,
				Gems:       sess.res.Gems,
				ServerTime: utils.EpochSeconds(now),
			}

			res := sess.res
			return &domain.Commit{Resources: &res, Ledger: entry}, nil
		})
	if err != nil {
		return nil, err
	}

	out.Replayed = replayed
	return out, nil
}

// ExpandWithGems grows the world radius by steps, paid in gems, exactly once
// per idempotency token
func (s *CityService) ExpandWithGems(ctx context.Context, playerID string, steps int, token string) (result *domain.ExpandGemsResult, err error) {
	defer func() { s.observe(opExpandGems, err) }()

	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	out := &domain.ExpandGemsResult{}
	replayed, err := s.execIdempotent(ctx, playerID, domain.OpExpandGems, token, out,
		func(ctx context.Context, now time.Time) (*domain.Commit, error) {
			sess, err := s.load(ctx, playerID, now, false)
			if err != nil {
				return nil, err
			}
			if err := sess.requireResources(); err != nil {
				return nil, err
			}
			s.reconcile(sess)

			from := sess.world.Radius
			price, err := expansionPrice(s.catalog.Expansion.Gems, from, steps)
			if err != nil {
				return nil, err
			}
			cost := int64(price)
			if !s.opts.Unlimited && sess.res.Gems < cost {
				return nil, domain.NewInvalidMutationError("Not enough gems to expand (cost %d)", cost)
			}

			// 무제한 모드에서는 차감하지 않음
			debit := cost
			meta := map[string]any{"steps": steps, "from_radius": from, "to_radius": from + steps}
			if s.opts.Unlimited {
				debit = 0
				meta["unlimited"] = true
			}
			sess.res.Gems -= debit
			sess.world.Radius = from + steps
			sess.world.UpdatedAt = &now
			sess.worldDirty = true

			*out = domain.ExpandGemsResult{
				Message:    fmt.Sprintf("World expanded by %d (gems)", steps),
				NewRadius:  sess.world.Radius,
				CostGems:   cost,
				Gems:       sess.res.Gems,
				ServerTime: utils.EpochSeconds(now),
			}

			c := sess.commit()
			c.Ledger = &domain.LedgerEntry{
				ID:        newLedgerID(),
				Type:      domain.LedgerSpend,
				Reason:    domain.ReasonExpandWorld,
				Delta:     map[string]int64{"gems": -debit},
				Meta:      meta,
				Timestamp: utils.EpochSeconds(now),
			}
			return c, nil
		})
	if err != nil {
		return nil, err
	}

	out.Replayed = replayed
	return out, nil
}
