package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/internal/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Unix(1700000000, 250000).UTC()

func setupStore(t *testing.T) (*PlayerStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPlayerStore(client, zaptest.NewLogger(t)), mr
}

func TestLoadMissingPlayer(t *testing.T) {
	store, _ := setupStore(t)

	snap, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", snap.PlayerID)
	assert.False(t, snap.HasResources)
	assert.False(t, snap.HasCity)
	assert.False(t, snap.HasWorld)

	exists, err := store.Exists(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCommitAndLoad(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()
	cat := catalog.Default()

	res := domain.NewResources(now, false)
	world := domain.NewWorld(3, now)
	err := store.Commit(ctx, "p1", &domain.Commit{
		Resources: &res,
		City:      domain.NewCity(cat),
		World:     &world,
	})
	require.NoError(t, err)

	assert.Equal(t, "500", mr.HGet("player:p1", "gold"))
	assert.True(t, mr.Exists("city:p1:buildings"))
	assert.True(t, mr.Exists("city:p1:world"))

	snap, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	require.True(t, snap.HasResources)
	require.True(t, snap.HasCity)
	require.True(t, snap.HasWorld)
	assert.Equal(t, 500.0, snap.Resources.Gold)
	assert.Equal(t, 300.0, snap.Resources.Wood)
	assert.True(t, snap.Resources.LastCollect.Equal(now))

	city, changed := domain.NormalizeCity(cat, snap.CityRaw)
	assert.False(t, changed)
	assert.Equal(t, 1, city.CountType(catalog.Townhall))

	w, changed := domain.NormalizeWorld(snap.WorldRaw, 3, now)
	assert.False(t, changed)
	assert.Equal(t, 3, w.Radius)

	exists, err := store.Exists(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCommitPartialLeavesOtherKeys(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	mr.Set("city:p1:buildings", `{"keep":"me"}`)
	res := domain.Resources{Gold: 12.5, LastCollect: now}
	require.NoError(t, store.Commit(ctx, "p1", &domain.Commit{Resources: &res}))

	got, err := mr.Get("city:p1:buildings")
	require.NoError(t, err)
	assert.Equal(t, `{"keep":"me"}`, got)
	assert.Equal(t, "12.5", mr.HGet("player:p1", "gold"))
}

func TestCommitEmptyIsNoop(t *testing.T) {
	store, mr := setupStore(t)
	require.NoError(t, store.Commit(context.Background(), "p1", &domain.Commit{}))
	require.NoError(t, store.Commit(context.Background(), "p1", nil))
	assert.Empty(t, mr.Keys())
}

func TestLedgerIsCappedNewestFirst(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for i := 0; i < domain.LedgerCap+5; i++ {
		entry := &domain.LedgerEntry{
			ID:        strconv.Itoa(i),
			Type:      domain.LedgerCredit,
			Reason:    domain.ReasonPurchaseGems,
			Delta:     map[string]int64{"gems": 1},
			Meta:      map[string]any{},
			Timestamp: float64(i),
		}
		require.NoError(t, store.Commit(ctx, "p1", &domain.Commit{Ledger: entry}))
	}

	all, err := store.Ledger(ctx, "p1", 5000)
	require.NoError(t, err)
	assert.Len(t, all, domain.LedgerCap)
	assert.Equal(t, strconv.Itoa(domain.LedgerCap+4), all[0].ID)

	latest, err := store.Ledger(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(1), latest[0].Delta["gems"])
	assert.Equal(t, domain.LedgerCredit, latest[0].Type)
}

func TestLedgerSkipsGarbage(t *testing.T) {
	store, mr := setupStore(t)
	mr.Lpush("ledger:p1", `{"id":"ok","type":"spend","reason":"expand_world","delta":{"gems":-10},"meta":{},"ts":1}`)
	mr.Lpush("ledger:p1", "not json")

	entries, err := store.Ledger(context.Background(), "p1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].ID)
	assert.Equal(t, int64(-10), entries[0].Delta["gems"])
}

func TestReceipts(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, found, err := store.LookupReceipt(ctx, "p1", domain.OpCreditGems, "tok")
	require.NoError(t, err)
	assert.False(t, found)

	res := domain.Resources{Gems: 5, LastCollect: now}
	err = store.Commit(ctx, "p1", &domain.Commit{
		Resources: &res,
		Receipt:   &domain.Receipt{Op: domain.OpCreditGems, Token: "tok", Body: []byte(`{"gems":5}`)},
	})
	require.NoError(t, err)

	body, found, err := store.LookupReceipt(ctx, "p1", domain.OpCreditGems, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"gems":5}`, string(body))
	assert.Equal(t, domain.IdempotentTTL, mr.TTL("idempo:p1:credit_gems:tok"))

	// 다른 작업 이름은 별도 키
	_, found, err = store.LookupReceipt(ctx, "p1", domain.OpExpandGems, "tok")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteKeepsLedger(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()
	cat := catalog.Default()

	res := domain.NewResources(now, false)
	world := domain.NewWorld(3, now)
	require.NoError(t, store.Commit(ctx, "p1", &domain.Commit{
		Resources: &res,
		City:      domain.NewCity(cat),
		World:     &world,
		Ledger:    &domain.LedgerEntry{ID: "l1", Type: domain.LedgerCredit, Reason: domain.ReasonPurchaseGems},
	}))

	require.NoError(t, store.Delete(ctx, "p1"))
	assert.False(t, mr.Exists("player:p1"))
	assert.False(t, mr.Exists("city:p1:buildings"))
	assert.False(t, mr.Exists("city:p1:world"))
	assert.True(t, mr.Exists("ledger:p1"))
}

func TestCommitFailsWhenServerDown(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()

	res := domain.NewResources(now, false)
	err := store.Commit(context.Background(), "p1", &domain.Commit{Resources: &res})
	assert.Error(t, err)

	_, err = store.Load(context.Background(), "p1")
	assert.Error(t, err)
}
