package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/internal/domain"
	"citybuilder/internal/metrics"
	"citybuilder/internal/reconcile"
	"citybuilder/pkg/utils"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// DefaultWorldRadius is the radius of a fresh world (a 7x7 grid)
const DefaultWorldRadius = 3

const archiveTimeout = 2 * time.Second

// Options are the operating flags of the city service
type Options struct {
	// Unlimited disables debits and idle growth and raises resources to a
	// large floor.
	Unlimited bool

	// Unbounded skips the world boundary check on placement.
	Unbounded bool

	DefaultRadius int

	// DebugDump logs reconciliation details of every request.
	DebugDump bool
}

// CityService implements domain.CityUseCase, domain.ShopUseCase and
// domain.DevUseCase on top of a player store and a player lock.
type CityService struct {
	store   domain.PlayerStore
	locker  domain.PlayerLocker
	catalog *catalog.Catalog
	ids     *snowflake.Node
	archive domain.LedgerArchive
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

var (
	_ domain.CityUseCase = (*CityService)(nil)
	_ domain.ShopUseCase = (*CityService)(nil)
	_ domain.DevUseCase  = (*CityService)(nil)
)

// NewCityService creates a new city service
func NewCityService(
	store domain.PlayerStore,
	locker domain.PlayerLocker,
	cat *catalog.Catalog,
	ids *snowflake.Node,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
) *CityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultRadius <= 0 {
		opts.DefaultRadius = DefaultWorldRadius
	}
	return &CityService{
		store:   store,
		locker:  locker,
		catalog: cat,
		ids:     ids,
		metrics: m,
		logger:  logger,
		opts:    opts,
		now:     utils.GetTimeNow,
	}
}

// SetArchive attaches a sink that receives every committed ledger entry
func (s *CityService) SetArchive(archive domain.LedgerArchive) {
	s.archive = archive
}

// Options returns the operating flags
func (s *CityService) Options() Options {
	return s.opts
}

// session is the loaded and normalized state of one player inside the lock
type session struct {
	playerID string
	now      time.Time

	hasResources bool
	hasCity      bool

	res        domain.Resources
	city       domain.City
	cityDirty  bool
	world      domain.World
	worldDirty bool

	reconciled reconcile.Result
}

// withLock runs fn inside the player's critical section
func (s *CityService) withLock(ctx context.Context, playerID string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(playerID) == "" {
		return domain.NewBadRequestError("user_id is required")
	}

	held, err := s.locker.Acquire(ctx, playerID)
	if err != nil {
		return err
	}
	defer held.Release(ctx)

	return fn(ctx)
}

// load reads and normalizes a player's state. With init set, missing pieces
// are created with their defaults and marked for write-back; otherwise a
// missing city loads as an empty one and callers decide whether that is an
// error.
func (s *CityService) load(ctx context.Context, playerID string, now time.Time, init bool) (*session, error) {
	snap, err := s.store.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}

	sess := &session{
		playerID:     playerID,
		now:          now,
		hasResources: snap.HasResources,
		hasCity:      snap.HasCity,
	}

	switch {
	case snap.HasResources:
		sess.res = snap.Resources
		if sess.res.LastCollect.IsZero() {
			// A missing last_collect starts accruing from now.
			sess.res.LastCollect = now
		}
	default:
		sess.res = domain.NewResources(now, s.opts.Unlimited)
	}

	switch {
	case snap.HasCity:
		sess.city, sess.cityDirty = domain.NormalizeCity(s.catalog, snap.CityRaw)
		if sess.city.EnsureTownhall(s.catalog) {
			sess.cityDirty = true
		}
	case init:
		sess.city = domain.NewCity(s.catalog)
		sess.cityDirty = true
	default:
		sess.city = domain.City{}
	}

	sess.world, sess.worldDirty = domain.NormalizeWorld(snap.WorldRaw, s.opts.DefaultRadius, now)
	return sess, nil
}

// requirePlayer fails unless both the resources and the city exist
func (sess *session) requirePlayer() error {
	if !sess.hasResources || !sess.hasCity {
		return domain.NewNotFoundError("Player not found")
	}
	return nil
}

// requireResources fails unless the resource hash exists
func (sess *session) requireResources() error {
	if !sess.hasResources {
		return domain.NewNotFoundError("Player not found")
	}
	return nil
}

// reconcile completes due upgrades and accrues idle production
func (s *CityService) reconcile(sess *session) {
	sess.reconciled = reconcile.Apply(s.catalog, sess.now, &sess.res, sess.city, s.opts.Unlimited)
	if sess.reconciled.CityChanged() {
		sess.cityDirty = true
	}

	if s.opts.DebugDump {
		b := sess.world.Bounds()
		s.logger.Info("reconciled player",
			zap.String("player_id", sess.playerID),
			zap.Float64("gold_ph", sess.reconciled.Rates.GoldPerHour),
			zap.Float64("wood_ph", sess.reconciled.Rates.WoodPerHour),
			zap.Float64("elapsed_h", sess.reconciled.Accrual.ElapsedHours),
			zap.Strings("completed", sess.reconciled.Completed),
			zap.Int("buildings", len(sess.city)),
			zap.Int("world_radius", sess.world.Radius),
			zap.Any("bounds", b),
		)
	}
}

// commit collects the resource hash and whatever else changed
func (sess *session) commit() *domain.Commit {
	res := sess.res
	c := &domain.Commit{Resources: &res}
	if sess.cityDirty {
		c.City = sess.city
	}
	if sess.worldDirty {
		w := sess.world
		c.World = &w
	}
	return c
}

func (s *CityService) canAfford(cost, balance float64) bool {
	return s.opts.Unlimited || balance >= cost
}

func (s *CityService) chargeGold(res *domain.Resources, cost float64) {
	if s.opts.Unlimited {
		return
	}
	res.Gold -= cost
}

// observe counts an operation outcome
func (s *CityService) observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	case domain.KindOf(err) != "":
		result = string(domain.KindOf(err))
	default:
		result = "error"
	}
	s.metrics.ObserveOperation(op, result)
}

// archiveEntry offers a committed ledger entry to the archive. Failures are
// logged only, the entry is already durable in the store.
func (s *CityService) archiveEntry(ctx context.Context, playerID string, entry *domain.LedgerEntry) {
	if s.archive == nil || entry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	if err := s.archive.Archive(ctx, playerID, *entry); err != nil {
		s.logger.Warn("failed to archive ledger entry",
			zap.String("player_id", playerID),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
	}
}
