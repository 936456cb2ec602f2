package cheque

import (
	"math/big"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BalanceUnit is 10^12, one whole token on the development runtime
var BalanceUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

// Balance converts a whole token amount to the chain's smallest unit
func Balance(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens), BalanceUnit)
}

// Cheque is a sponsor's spending authorization. Optional restrictions that are
// None leave the corresponding dimension unrestricted.
type Cheque struct {
	// Deadline is the last block (inclusive) at which the cheque may be used
	Deadline              uint32                        `json:"deadline"`
	SponsorMinimumBalance *big.Int                      `json:"sponsorMinimumBalance"`
	OnlyAccount           types.Option[types.AccountId] `json:"onlyAccount"`
	OnlyAccountNonce      types.Option[uint64]          `json:"onlyAccountNonce"`
	OnlyCallHash          types.Option[types.Hash]      `json:"onlyCallHash"`
	SponsorMaximumTip     *big.Int                      `json:"sponsorMaximumTip"`
}

// New returns an unrestricted cheque
func New(deadline uint32, sponsorMinimumBalance, sponsorMaximumTip *big.Int) *Cheque {
	return &Cheque{
		Deadline:              deadline,
		SponsorMinimumBalance: sponsorMinimumBalance,
		OnlyAccount:           types.None[types.AccountId](),
		OnlyAccountNonce:      types.None[uint64](),
		OnlyCallHash:          types.None[types.Hash](),
		SponsorMaximumTip:     sponsorMaximumTip,
	}
}

func (c *Cheque) WithOnlyAccount(id types.AccountId) *Cheque {
	cp := c.clone()
	cp.OnlyAccount = types.Some(id)
	return cp
}

func (c *Cheque) WithOnlyAccountNonce(nonce uint64) *Cheque {
	cp := c.clone()
	cp.OnlyAccountNonce = types.Some(nonce)
	return cp
}

func (c *Cheque) WithOnlyCallHash(h types.Hash) *Cheque {
	cp := c.clone()
	cp.OnlyCallHash = types.Some(h)
	return cp
}

func (c *Cheque) clone() *Cheque {
	cp := *c
	cp.SponsorMinimumBalance = copyInt(c.SponsorMinimumBalance)
	cp.SponsorMaximumTip = copyInt(c.SponsorMaximumTip)
	return &cp
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func balanceOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Equal compares cheques field by field, treating nil balances as zero
func (c *Cheque) Equal(other *Cheque) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Deadline == other.Deadline &&
		balanceOrZero(c.SponsorMinimumBalance).Cmp(balanceOrZero(other.SponsorMinimumBalance)) == 0 &&
		c.OnlyAccount == other.OnlyAccount &&
		c.OnlyAccountNonce == other.OnlyAccountNonce &&
		c.OnlyCallHash == other.OnlyCallHash &&
		balanceOrZero(c.SponsorMaximumTip).Cmp(balanceOrZero(other.SponsorMaximumTip)) == 0
}

func (c Cheque) Encode(encoder scale.Encoder) error {
	if err := encoder.Encode(c.Deadline); err != nil {
		return err
	}
	if err := encoder.Encode(gsrpcTypes.NewU128(*balanceOrZero(c.SponsorMinimumBalance))); err != nil {
		return err
	}
	if err := encoder.Encode(c.OnlyAccount); err != nil {
		return err
	}
	if err := encoder.Encode(c.OnlyAccountNonce); err != nil {
		return err
	}
	if err := encoder.Encode(c.OnlyCallHash); err != nil {
		return err
	}
	return encoder.Encode(gsrpcTypes.NewU128(*balanceOrZero(c.SponsorMaximumTip)))
}

func (c *Cheque) Decode(decoder scale.Decoder) error {
	if err := decoder.Decode(&c.Deadline); err != nil {
		return err
	}
	var minimum gsrpcTypes.U128
	if err := minimum.Decode(decoder); err != nil {
		return err
	}
	if err := c.OnlyAccount.Decode(decoder); err != nil {
		return err
	}
	if err := c.OnlyAccountNonce.Decode(decoder); err != nil {
		return err
	}
	if err := c.OnlyCallHash.Decode(decoder); err != nil {
		return err
	}
	var tip gsrpcTypes.U128
	if err := tip.Decode(decoder); err != nil {
		return err
	}
	c.SponsorMinimumBalance = minimum.Int
	c.SponsorMaximumTip = tip.Int
	return nil
}

// PreSignedCheque is a cheque together with the sponsor's signature over its
// canonical encoding and the sponsor's AccountId.
type PreSignedCheque struct {
	Cheque    Cheque               `json:"cheque"`
	Signature types.MultiSignature `json:"signature"`
	Signer    types.AccountId      `json:"signer"`
}

func (p PreSignedCheque) Encode(encoder scale.Encoder) error {
	if err := encoder.Encode(p.Cheque); err != nil {
		return err
	}
	if err := encoder.Encode(p.Signature); err != nil {
		return err
	}
	return encoder.Encode(p.Signer)
}

func (p *PreSignedCheque) Decode(decoder scale.Decoder) error {
	if err := p.Cheque.Decode(decoder); err != nil {
		return err
	}
	if err := p.Signature.Decode(decoder); err != nil {
		return err
	}
	return p.Signer.Decode(decoder)
}

// Hex is the signed encoding as 0x-prefixed hex, the form embedded in typed data
func (p *PreSignedCheque) Hex() (string, error) {
	b, err := EncodeSignedCheque(p)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}
