package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"citybuilder/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// setupArchive skips the test if MongoDB is not available
func setupArchive(t *testing.T) *LedgerArchive {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	archive, err := NewLedgerArchive(ctx, ArchiveOptions{
		URI:            uri,
		Database:       "citybuilder_test",
		Collection:     "ledger_" + uuid.NewString()[:8],
		ConnectTimeout: 2 * time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("Skipping MongoDB test: %v", err)
	}

	t.Cleanup(func() {
		archive.collection.Drop(context.Background())
		archive.Close(context.Background())
	})
	return archive
}

func TestArchiveIsIdempotent(t *testing.T) {
	archive := setupArchive(t)
	ctx := context.Background()

	entry := domain.LedgerEntry{
		ID:        uuid.NewString(),
		Type:      domain.LedgerCredit,
		Reason:    domain.ReasonPurchaseGems,
		Delta:     map[string]int64{"gems": 100},
		Meta:      map[string]any{"provider": "dev"},
		Timestamp: 1700000000.5,
	}

	require.NoError(t, archive.Archive(ctx, "p1", entry))
	require.NoError(t, archive.Archive(ctx, "p1", entry))

	entries, err := archive.Entries(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, int64(100), entries[0].Delta["gems"])
	assert.Equal(t, "dev", entries[0].Meta["provider"])
}

func TestEntriesNewestFirst(t *testing.T) {
	archive := setupArchive(t)
	ctx := context.Background()

	for i, ts := range []float64{10, 30, 20} {
		require.NoError(t, archive.Archive(ctx, "p1", domain.LedgerEntry{
			ID:        uuid.NewString(),
			Type:      domain.LedgerSpend,
			Reason:    domain.ReasonExpandWorld,
			Delta:     map[string]int64{"gems": -int64(i + 1)},
			Meta:      map[string]any{},
			Timestamp: ts,
		}))
	}
	require.NoError(t, archive.Archive(ctx, "p2", domain.LedgerEntry{ID: uuid.NewString(), Timestamp: 99}))

	entries, err := archive.Entries(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 30.0, entries[0].Timestamp)
	assert.Equal(t, 20.0, entries[1].Timestamp)
}
