package persistence

import (
	"fmt"
	"time"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	pkgErrors "github.com/pkg/errors"
)

// StoredCheque is a cached PreSignedCheque together with its lookup metadata.
// Encoded holds the canonical signed encoding; Cheque is decoded from it.
type StoredCheque struct {
	Key      types.Hash      `json:"key"`
	Signer   types.AccountId `json:"signer"`
	Deadline uint32          `json:"deadline"`
	Encoded  hexutil.Bytes   `json:"encoded"`
	StoredAt int64           `json:"storedAt"`

	Cheque *cheque.PreSignedCheque `json:"-"`
}

// NewStoredCheque computes the content key of psc and captures its encoding
func NewStoredCheque(psc *cheque.PreSignedCheque) (*StoredCheque, error) {
	if psc == nil {
		return nil, fmt.Errorf("cannot store nil PreSignedCheque")
	}
	encoded, err := cheque.EncodeSignedCheque(psc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PreSignedCheque: %w", err)
	}
	key, err := cheque.ContentKey(psc)
	if err != nil {
		return nil, err
	}
	decoded, err := cheque.DecodeSignedCheque(encoded)
	if err != nil {
		return nil, err
	}
	return &StoredCheque{
		Key:      key,
		Signer:   psc.Signer,
		Deadline: psc.Cheque.Deadline,
		Encoded:  encoded,
		StoredAt: time.Now().Unix(),
		Cheque:   decoded,
	}, nil
}

// Expired reports whether the cheque can no longer be used at blockNumber
func (s *StoredCheque) Expired(blockNumber uint32) bool {
	return s.Deadline < blockNumber
}

// Copy returns a deep copy so callers can't mutate cached entries
func (s *StoredCheque) Copy() *StoredCheque {
	if s == nil {
		return nil
	}
	out := *s
	out.Encoded = append(hexutil.Bytes(nil), s.Encoded...)
	if decoded, err := cheque.DecodeSignedCheque(out.Encoded); err == nil {
		out.Cheque = decoded
	}
	return &out
}

// restore decodes Encoded and checks that it still hashes to Key
func (s *StoredCheque) restore() error {
	decoded, err := cheque.DecodeSignedCheque(s.Encoded)
	if err != nil {
		return err
	}
	key, err := cheque.ContentKey(decoded)
	if err != nil {
		return err
	}
	if key != s.Key {
		return pkgErrors.Wrapf(types.ErrEncodingMismatch, "stored cheque %s hashes to %s", s.Key.Hex(), key.Hex())
	}
	s.Cheque = decoded
	return nil
}
