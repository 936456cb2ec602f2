package cheque

import (
	"math/big"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/pkg/errors"
)

// Usage describes one intended use of a cheque
type Usage struct {
	BlockNumber  uint32
	Who          types.AccountId
	AccountNonce uint64
	CallHash     types.Hash
	Tip          *big.Int
	// SponsorBalance is the sponsor's free balance, when known
	SponsorBalance *big.Int
}

// CheckApplicable reports whether the chain would honour c for the given usage.
// A failed check wraps ErrChequeNotApplicable.
func (c *Cheque) CheckApplicable(u Usage) error {
	if u.BlockNumber > c.Deadline {
		return errors.Wrapf(types.ErrChequeNotApplicable, "deadline %d passed at block %d", c.Deadline, u.BlockNumber)
	}
	if who, ok := c.OnlyAccount.Unwrap(); ok && who != u.Who {
		return errors.Wrapf(types.ErrChequeNotApplicable, "cheque is restricted to account %s", who.Hex())
	}
	if nonce, ok := c.OnlyAccountNonce.Unwrap(); ok && nonce != u.AccountNonce {
		return errors.Wrapf(types.ErrChequeNotApplicable, "cheque is restricted to nonce %d, got %d", nonce, u.AccountNonce)
	}
	if h, ok := c.OnlyCallHash.Unwrap(); ok && h != u.CallHash {
		return errors.Wrapf(types.ErrChequeNotApplicable, "cheque is restricted to call %s", h.Hex())
	}
	tip := balanceOrZero(u.Tip)
	if tip.Cmp(balanceOrZero(c.SponsorMaximumTip)) > 0 {
		return errors.Wrapf(types.ErrChequeNotApplicable, "tip %s exceeds sponsor maximum %s", tip, balanceOrZero(c.SponsorMaximumTip))
	}
	if u.SponsorBalance != nil {
		remaining := new(big.Int).Sub(u.SponsorBalance, tip)
		if remaining.Cmp(balanceOrZero(c.SponsorMinimumBalance)) < 0 {
			return errors.Wrapf(types.ErrChequeNotApplicable, "sponsor balance would drop below %s", balanceOrZero(c.SponsorMinimumBalance))
		}
	}
	return nil
}
