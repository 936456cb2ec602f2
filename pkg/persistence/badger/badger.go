package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

const (
	keyPrefixCheque      = "cheque:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a disk backed cheque cache.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IChequeStore = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) the database at dataPath with
// SyncWrites enabled and starts a background value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newBadgerLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger cheque store initialized", "path", absPath)

	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func chequeKey(key types.Hash) []byte {
	return []byte(keyPrefixCheque + key.Hex())
}

func (b *BadgerPersistence) PutCheque(psc *cheque.PreSignedCheque) (types.Hash, error) {
	sc, err := persistence.NewStoredCheque(psc)
	if err != nil {
		return types.Hash{}, err
	}
	data, err := persistence.MarshalStoredCheque(sc)
	if err != nil {
		return types.Hash{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return types.Hash{}, fmt.Errorf("persistence layer is closed")
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(chequeKey(sc.Key))
		if err == nil {
			return nil // entries are immutable
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(chequeKey(sc.Key), data)
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("failed to store cheque: %w", err)
	}
	return sc.Key, nil
}

func (b *BadgerPersistence) GetCheque(key types.Hash) (*persistence.StoredCheque, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(chequeKey(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cheque: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalStoredCheque(data)
}

func (b *BadgerPersistence) ListCheques() ([]*persistence.StoredCheque, error) {
	return b.list(func(*persistence.StoredCheque) bool { return true })
}

func (b *BadgerPersistence) ListChequesBySigner(signer types.AccountId) ([]*persistence.StoredCheque, error) {
	return b.list(func(sc *persistence.StoredCheque) bool { return sc.Signer == signer })
}

func (b *BadgerPersistence) list(keep func(*persistence.StoredCheque) bool) ([]*persistence.StoredCheque, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	var cheques []*persistence.StoredCheque
	err := b.db.View(func(txn *badgerdb.Txn) error {
		return b.iterate(txn, func(_ []byte, sc *persistence.StoredCheque) {
			if keep(sc) {
				cheques = append(cheques, sc)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cheques: %w", err)
	}

	persistence.SortByDeadline(cheques)
	return cheques, nil
}

// iterate visits every decodable cheque under the cheque prefix
func (b *BadgerPersistence) iterate(txn *badgerdb.Txn, visit func(key []byte, sc *persistence.StoredCheque)) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(keyPrefixCheque)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()

		data, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read value: %w", err)
		}

		sc, err := persistence.UnmarshalStoredCheque(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal stored cheque, skipping",
				"key", string(item.Key()), "error", err)
			continue
		}
		visit(item.KeyCopy(nil), sc)
	}
	return nil
}

func (b *BadgerPersistence) PruneExpired(blockNumber uint32) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	var expired [][]byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		return b.iterate(txn, func(key []byte, sc *persistence.StoredCheque) {
			if sc.Expired(blockNumber) {
				expired = append(expired, key)
			}
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cheques: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune cheques: %w", err)
	}

	b.logger.Sugar().Infow("Pruned expired cheques", "count", len(expired), "blockNumber", blockNumber)
	return len(expired), nil
}

// Close stops the GC loop and closes the database. Idempotent.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger cheque store closed")
	return nil
}

func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
