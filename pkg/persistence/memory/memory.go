package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IChequeStore.
//
// All data is lost when the process exits, which is fine for a cache that a
// relayer can repopulate from sponsors. Entries are deep copied on the way in
// and out to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// content key -> cheque
	cheques map[types.Hash]*persistence.StoredCheque

	closed bool
}

var _ persistence.IChequeStore = (*MemoryPersistence)(nil)

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		cheques: make(map[types.Hash]*persistence.StoredCheque),
	}
}

func (m *MemoryPersistence) PutCheque(psc *cheque.PreSignedCheque) (types.Hash, error) {
	sc, err := persistence.NewStoredCheque(psc)
	if err != nil {
		return types.Hash{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.Hash{}, fmt.Errorf("persistence layer is closed")
	}

	if _, exists := m.cheques[sc.Key]; !exists {
		m.cheques[sc.Key] = sc
	}
	return sc.Key, nil
}

func (m *MemoryPersistence) GetCheque(key types.Hash) (*persistence.StoredCheque, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	sc, exists := m.cheques[key]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return sc.Copy(), nil
}

func (m *MemoryPersistence) ListCheques() ([]*persistence.StoredCheque, error) {
	return m.list(func(*persistence.StoredCheque) bool { return true })
}

func (m *MemoryPersistence) ListChequesBySigner(signer types.AccountId) ([]*persistence.StoredCheque, error) {
	return m.list(func(sc *persistence.StoredCheque) bool { return sc.Signer == signer })
}

func (m *MemoryPersistence) list(keep func(*persistence.StoredCheque) bool) ([]*persistence.StoredCheque, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.StoredCheque, 0, len(m.cheques))
	for _, sc := range m.cheques {
		if keep(sc) {
			result = append(result, sc.Copy())
		}
	}
	persistence.SortByDeadline(result)
	return result, nil
}

func (m *MemoryPersistence) PruneExpired(blockNumber uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	removed := 0
	for key, sc := range m.cheques {
		if sc.Expired(blockNumber) {
			delete(m.cheques, key)
			removed++
		}
	}
	return removed, nil
}

// Close marks the store closed and drops its contents. Idempotent.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cheques = nil
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
