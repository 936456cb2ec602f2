package metaCall

import (
	"math/big"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/sponsor"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// MetaCall is the relay payload. Any account holding native funds can submit
// it; the chain module checks both signatures and dispatches CallData as Who.
type MetaCall struct {
	Who      types.AccountId `json:"who"`
	CallData hexutil.Bytes   `json:"callData"`
	Nonce    uint64          `json:"nonce"`
	// Tip is nil when no tip is offered
	Tip *big.Int `json:"tip,omitempty"`
	// PreSignedCheque is nil when the caller pays its own fees
	PreSignedCheque *cheque.PreSignedCheque `json:"preSignedCheque,omitempty"`
	Signature       types.EvmSignature      `json:"signature"`
}

// Args returns the meta_call arguments in dispatch order:
// who, call, nonce, tip, cheque, signature.
func (m *MetaCall) Args() ([]interface{}, error) {
	tip := types.None[gsrpcTypes.U128]()
	if m.Tip != nil {
		if m.Tip.Sign() < 0 || m.Tip.BitLen() > 128 {
			return nil, errors.Wrapf(types.ErrEncodingMismatch, "tip %s does not fit in u128", m.Tip)
		}
		tip = types.Some(gsrpcTypes.NewU128(*m.Tip))
	}

	psc := types.None[cheque.PreSignedCheque]()
	if m.PreSignedCheque != nil {
		psc = types.Some(*m.PreSignedCheque)
	}

	return []interface{}{
		m.Who,
		// the inner call is embedded as is, without a length prefix
		gsrpcTypes.Data(m.CallData),
		m.Nonce,
		tip,
		psc,
		m.Signature,
	}, nil
}

// Descriptor names the runtime call that carries m
func (m *MetaCall) Descriptor() (chain.CallDescriptor, error) {
	args, err := m.Args()
	if err != nil {
		return chain.CallDescriptor{}, err
	}
	return chain.CallDescriptor{Name: chain.MetaCallName, Args: args}, nil
}

// SubstrateCall is the typed-data message m's signature must cover
func (m *MetaCall) SubstrateCall(ss58Prefix uint16) (eip712.SubstrateCall, error) {
	who, err := address.EncodeSS58(m.Who, ss58Prefix)
	if err != nil {
		return eip712.SubstrateCall{}, err
	}
	call := eip712.SubstrateCall{
		Who:      who,
		CallData: m.CallData,
		Nonce:    m.Nonce,
		Tip:      m.Tip,
	}
	if m.PreSignedCheque != nil {
		encoded, err := cheque.EncodeSignedCheque(m.PreSignedCheque)
		if err != nil {
			return eip712.SubstrateCall{}, err
		}
		call.PreSignedCheque = encoded
	}
	return call, nil
}

// Verifier checks MetaCalls the way the chain module will before a relayer
// spends funds submitting them.
type Verifier struct {
	domain     apitypes.TypedDataDomain
	deriver    *address.Deriver
	ss58Prefix uint16
}

func NewVerifier(meta eip712.ChainMetadata, layout address.TransparentLayout, ss58Prefix uint16) (*Verifier, error) {
	domain, err := eip712.BuildDomain(meta)
	if err != nil {
		return nil, err
	}
	deriver, err := address.NewDeriverForVersion(meta.Version, layout)
	if err != nil {
		return nil, err
	}
	return &Verifier{domain: domain, deriver: deriver, ss58Prefix: ss58Prefix}, nil
}

// Verify recovers the signer of m and checks that it maps to m.Who, then checks
// the sponsor signature of the attached cheque. Returns the recovered key.
func (v *Verifier) Verify(m *MetaCall) (types.PublicKey, error) {
	call, err := m.SubstrateCall(v.ss58Prefix)
	if err != nil {
		return types.PublicKey{}, err
	}
	digest, err := eip712.Hash(eip712.BuildTypedData(v.domain, call))
	if err != nil {
		return types.PublicKey{}, err
	}
	pub, err := recovery.RecoverFromTypedDataSignature(digest, m.Signature)
	if err != nil {
		return types.PublicKey{}, err
	}
	if err := recovery.VerifyAccount(pub, v.deriver, m.Who); err != nil {
		return types.PublicKey{}, err
	}
	if m.PreSignedCheque != nil {
		if err := sponsor.Verify(m.PreSignedCheque); err != nil {
			return types.PublicKey{}, err
		}
	}
	return pub, nil
}
