// Package redis implements the player state store on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"citybuilder/internal/domain"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PlayerStore is a Redis implementation of domain.PlayerStore.
// Reads are pipelined and every write-back is a single MULTI/EXEC batch, so a
// failed commit leaves nothing applied.
type PlayerStore struct {
	client goredis.UniversalClient
	logger *zap.Logger
}

// NewPlayerStore creates a new Redis player store
func NewPlayerStore(client goredis.UniversalClient, logger *zap.Logger) *PlayerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayerStore{
		client: client,
		logger: logger,
	}
}

// Load reads the resource hash, city document and world document in one round trip
func (s *PlayerStore) Load(ctx context.Context, playerID string) (*domain.Snapshot, error) {
	pipe := s.client.Pipeline()
	resCmd := pipe.HGetAll(ctx, playerKey(playerID))
	cityCmd := pipe.Get(ctx, cityKey(playerID))
	worldCmd := pipe.Get(ctx, worldKey(playerID))

	// 누락된 키는 개별 명령에서 redis.Nil로 확인
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("failed to load player %s: %w", playerID, err)
	}

	snap := &domain.Snapshot{PlayerID: playerID}

	fields, err := resCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load resources of %s: %w", playerID, err)
	}
	if len(fields) > 0 {
		snap.Resources = domain.ResourcesFromHash(fields)
		snap.HasResources = true
	}

	if snap.CityRaw, snap.HasCity, err = optionalBytes(cityCmd); err != nil {
		return nil, fmt.Errorf("failed to load city of %s: %w", playerID, err)
	}
	if snap.WorldRaw, snap.HasWorld, err = optionalBytes(worldCmd); err != nil {
		return nil, fmt.Errorf("failed to load world of %s: %w", playerID, err)
	}

	return snap, nil
}

func optionalBytes(cmd *goredis.StringCmd) ([]byte, bool, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Exists reports whether the player has a resource hash or a city
func (s *PlayerStore) Exists(ctx context.Context, playerID string) (bool, error) {
	n, err := s.client.Exists(ctx, playerKey(playerID), cityKey(playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check player %s: %w", playerID, err)
	}
	return n > 0, nil
}

// Commit writes every non-nil member of c atomically
func (s *PlayerStore) Commit(ctx context.Context, playerID string, c *domain.Commit) error {
	if c == nil || c.Empty() {
		return nil
	}

	// 트랜잭션 밖에서 먼저 직렬화
	var cityData, worldData, ledgerData []byte
	var err error
	if c.City != nil {
		if cityData, err = domain.EncodeCity(c.City); err != nil {
			return err
		}
	}
	if c.World != nil {
		if worldData, err = domain.EncodeWorld(*c.World); err != nil {
			return err
		}
	}
	if c.Ledger != nil {
		if ledgerData, err = json.Marshal(c.Ledger); err != nil {
			return fmt.Errorf("failed to encode ledger entry: %w", err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if c.Resources != nil {
			pipe.HSet(ctx, playerKey(playerID), c.Resources.Hash())
		}
		if cityData != nil {
			pipe.Set(ctx, cityKey(playerID), cityData, 0)
		}
		if worldData != nil {
			pipe.Set(ctx, worldKey(playerID), worldData, 0)
		}
		if ledgerData != nil {
			pipe.LPush(ctx, ledgerKey(playerID), ledgerData)
			pipe.LTrim(ctx, ledgerKey(playerID), 0, domain.LedgerCap-1)
		}
		if c.Receipt != nil {
			ttl := c.Receipt.TTL
			if ttl <= 0 {
				ttl = domain.IdempotentTTL
			}
			pipe.Set(ctx, receiptKey(playerID, c.Receipt.Op, c.Receipt.Token), c.Receipt.Body, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit player %s: %w", playerID, err)
	}
	return nil
}

// Delete removes the resource hash, city and world of a player. The ledger
// and idempotency records are kept.
func (s *PlayerStore) Delete(ctx context.Context, playerID string) error {
	if err := s.client.Del(ctx, playerKey(playerID), cityKey(playerID), worldKey(playerID)).Err(); err != nil {
		return fmt.Errorf("failed to delete player %s: %w", playerID, err)
	}
	return nil
}

// LookupReceipt returns the cached response of an idempotent operation
func (s *PlayerStore) LookupReceipt(ctx context.Context, playerID, op, token string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, receiptKey(playerID, op, token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up receipt %s/%s: %w", op, token, err)
	}
	return data, true, nil
}

// Ledger returns up to limit ledger entries, newest first
func (s *PlayerStore) Ledger(ctx context.Context, playerID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		return []domain.LedgerEntry{}, nil
	}
	if limit > domain.LedgerCap {
		limit = domain.LedgerCap
	}

	items, err := s.client.LRange(ctx, ledgerKey(playerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger of %s: %w", playerID, err)
	}

	entries := make([]domain.LedgerEntry, 0, len(items))
	for _, item := range items {
		var entry domain.LedgerEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("skipping undecodable ledger entry",
				zap.String("player_id", playerID),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
