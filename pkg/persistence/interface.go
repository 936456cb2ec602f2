package persistence

import (
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
)

// IChequeStore caches pre-signed cheques handed out by sponsors so relayers can
// reuse them across meta-calls. Entries are addressed by the blake2b-256 hash of
// their canonical signed encoding and never change once written.
//
// All implementations must be safe for concurrent use.
type IChequeStore interface {
	// PutCheque stores psc under its content key and returns the key.
	// Storing an identical cheque again is a no-op.
	PutCheque(psc *cheque.PreSignedCheque) (types.Hash, error)

	// GetCheque returns the cheque stored under key.
	// Returns nil if it doesn't exist, error only on storage failure.
	GetCheque(key types.Hash) (*StoredCheque, error)

	// ListCheques returns every stored cheque ordered by deadline (ascending).
	ListCheques() ([]*StoredCheque, error)

	// ListChequesBySigner returns the cheques issued by signer ordered by deadline.
	ListChequesBySigner(signer types.AccountId) ([]*StoredCheque, error)

	// PruneExpired removes cheques whose deadline is before blockNumber and
	// returns how many were removed.
	PruneExpired(blockNumber uint32) (int, error)

	// Close releases the backend. Idempotent; later calls return errors.
	Close() error

	// HealthCheck returns nil when the backend is operational
	HealthCheck() error
}
