package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefixCheque      = "evmmap:cheque:"
	keySchemaVersion     = "evmmap:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so cheque keys are tracked in a set
	keySetCheques = "evmmap:cheques:index"
)

// RedisPersistence is a cheque cache shared by every relayer pointed at the
// same Redis instance.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IChequeStore = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "relayer-a:" gives
	// "relayer-a:evmmap:cheque:0x..".
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis cheque store initialized", "address", cfg.Address, "db", cfg.DB, "keyPrefix", cfg.KeyPrefix)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) chequeKey(key string) string {
	return r.prefixKey(keyPrefixCheque + key)
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisPersistence) PutCheque(psc *cheque.PreSignedCheque) (types.Hash, error) {
	sc, err := persistence.NewStoredCheque(psc)
	if err != nil {
		return types.Hash{}, err
	}
	data, err := persistence.MarshalStoredCheque(sc)
	if err != nil {
		return types.Hash{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return types.Hash{}, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	id := sc.Key.Hex()

	// SETNX keeps the first write; entries never change afterwards
	pipe := r.client.TxPipeline()
	pipe.SetNX(ctx, r.chequeKey(id), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetCheques), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.Hash{}, fmt.Errorf("failed to store cheque: %w", err)
	}
	return sc.Key, nil
}

func (r *RedisPersistence) GetCheque(key types.Hash) (*persistence.StoredCheque, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := r.client.Get(context.Background(), r.chequeKey(key.Hex())).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cheque: %w", err)
	}
	return persistence.UnmarshalStoredCheque(data)
}

func (r *RedisPersistence) ListCheques() ([]*persistence.StoredCheque, error) {
	return r.list(func(*persistence.StoredCheque) bool { return true })
}

func (r *RedisPersistence) ListChequesBySigner(signer types.AccountId) ([]*persistence.StoredCheque, error) {
	return r.list(func(sc *persistence.StoredCheque) bool { return sc.Signer == signer })
}

func (r *RedisPersistence) list(keep func(*persistence.StoredCheque) bool) ([]*persistence.StoredCheque, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	all, err := r.loadAll(context.Background())
	if err != nil {
		return nil, err
	}

	result := make([]*persistence.StoredCheque, 0, len(all))
	for _, sc := range all {
		if keep(sc) {
			result = append(result, sc)
		}
	}
	persistence.SortByDeadline(result)
	return result, nil
}

// loadAll fetches every indexed cheque, dropping index entries whose value is gone
func (r *RedisPersistence) loadAll(ctx context.Context) ([]*persistence.StoredCheque, error) {
	indexKey := r.prefixKey(keySetCheques)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cheque keys: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.chequeKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cheques: %w", err)
	}

	cheques := make([]*persistence.StoredCheque, 0, len(values))
	for i, val := range values {
		if val == nil {
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for cheque", "key", keys[i])
			continue
		}

		sc, err := persistence.UnmarshalStoredCheque([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal stored cheque, skipping",
				"key", keys[i], "error", err)
			continue
		}
		cheques = append(cheques, sc)
	}
	return cheques, nil
}

func (r *RedisPersistence) PruneExpired(blockNumber uint32) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	all, err := r.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	indexKey := r.prefixKey(keySetCheques)
	pipe := r.client.TxPipeline()
	removed := 0
	for _, sc := range all {
		if !sc.Expired(blockNumber) {
			continue
		}
		id := sc.Key.Hex()
		pipe.Del(ctx, r.chequeKey(id))
		pipe.SRem(ctx, indexKey, id)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune cheques: %w", err)
	}

	r.logger.Sugar().Infow("Pruned expired cheques", "count", removed, "blockNumber", blockNumber)
	return removed, nil
}

// Close closes the Redis client. Idempotent.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis cheque store closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	return err
}
