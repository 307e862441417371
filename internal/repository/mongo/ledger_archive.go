// Package mongo archives committed ledger entries to MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"citybuilder/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DefaultCollection is the collection ledger entries are written to
const DefaultCollection = "ledger_entries"

// ArchiveOptions represents configuration options for the ledger archive
type ArchiveOptions struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// ledgerDocument is the stored shape of an archived entry
type ledgerDocument struct {
	ID        string           `bson:"_id"`
	PlayerID  string           `bson:"player_id"`
	Type      string           `bson:"type"`
	Reason    string           `bson:"reason"`
	Delta     map[string]int64 `bson:"delta"`
	Meta      map[string]any   `bson:"meta"`
	Timestamp float64          `bson:"ts"`
}

// LedgerArchive is a MongoDB implementation of domain.LedgerArchive
type LedgerArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewLedgerArchive connects to MongoDB and prepares the archive collection
func NewLedgerArchive(ctx context.Context, opts ArchiveOptions, logger *zap.Logger) (*LedgerArchive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Database == "" {
		opts.Database = "citybuilder"
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(opts.Database).Collection(opts.Collection)
	_, err = collection.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "player_id", Value: 1}, {Key: "ts", Value: -1}},
	})
	if err != nil {
		logger.Warn("failed to create ledger index", zap.Error(err))
	}

	return &LedgerArchive{
		client:     client,
		collection: collection,
		logger:     logger,
	}, nil
}

// Archive inserts an entry. Entries already archived are skipped.
func (a *LedgerArchive) Archive(ctx context.Context, playerID string, entry domain.LedgerEntry) error {
	doc := ledgerDocument{
		ID:        entry.ID,
		PlayerID:  playerID,
		Type:      string(entry.Type),
		Reason:    entry.Reason,
		Delta:     entry.Delta,
		Meta:      entry.Meta,
		Timestamp: entry.Timestamp,
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to archive ledger entry %s: %w", entry.ID, err)
	}
	return nil
}

// Entries returns archived entries of a player, newest first
func (a *LedgerArchive) Entries(ctx context.Context, playerID string, limit int64) ([]domain.LedgerEntry, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "ts", Value: -1}}).SetLimit(limit)
	cursor, err := a.collection.Find(ctx, bson.M{"player_id": playerID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger archive: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []ledgerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode ledger archive: %w", err)
	}

	entries := make([]domain.LedgerEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, domain.LedgerEntry{
			ID:        d.ID,
			Type:      domain.LedgerEntryType(d.Type),
			Reason:    d.Reason,
			Delta:     d.Delta,
			Meta:      d.Meta,
			Timestamp: d.Timestamp,
		})
	}
	return entries, nil
}

// Close disconnects from MongoDB
func (a *LedgerArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
