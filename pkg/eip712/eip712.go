package eip712

import (
	"math/big"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

const (
	DefaultDomainName = "Substrate"
	PrimaryType       = "SubstrateCall"
	domainType        = "EIP712Domain"
)

// The target chain is not an EVM contract, so both of these are fixed sentinels
var (
	DomainChainId           = big.NewInt(0)
	DomainVerifyingContract = common.Address{}
)

// ChainMetadata holds the typed-data constants exposed by the chain module
type ChainMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

var typeDefinitions = apitypes.Types{
	domainType: []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	// field order is part of the type hash
	PrimaryType: []apitypes.Type{
		{Name: "who", Type: "string"},
		{Name: "callData", Type: "bytes"},
		{Name: "nonce", Type: "uint64"},
		{Name: "tip", Type: "uint128"},
		{Name: "preSignedCheque", Type: "bytes"},
	},
}

// Types returns a copy of the schema used for every SubstrateCall
func Types() apitypes.Types {
	out := make(apitypes.Types, len(typeDefinitions))
	for name, fields := range typeDefinitions {
		out[name] = append([]apitypes.Type(nil), fields...)
	}
	return out
}

// BuildDomain turns chain constants into a typed-data domain. Only protocol
// versions with a known address strategy are accepted.
func BuildDomain(meta ChainMetadata) (apitypes.TypedDataDomain, error) {
	if _, err := address.StrategyForVersion(meta.Version); err != nil {
		return apitypes.TypedDataDomain{}, errors.Wrapf(types.ErrUnsupportedProtocolVersion, "typed data version %q", meta.Version)
	}
	name := meta.Name
	if name == "" {
		name = DefaultDomainName
	}
	return apitypes.TypedDataDomain{
		Name:              name,
		Version:           meta.Version,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(DomainChainId)),
		VerifyingContract: DomainVerifyingContract.Hex(),
	}, nil
}

// SubstrateCall is the message half of the typed data
type SubstrateCall struct {
	// Who is the SS58 text form of the caller's AccountId
	Who      string
	CallData []byte
	Nonce    uint64
	Tip      *big.Int
	// PreSignedCheque is the signed cheque encoding, empty when unsponsored
	PreSignedCheque []byte
}

func (c SubstrateCall) message() apitypes.TypedDataMessage {
	tip := new(big.Int)
	if c.Tip != nil {
		tip.Set(c.Tip)
	}
	return apitypes.TypedDataMessage{
		"who":             c.Who,
		"callData":        hexutil.Encode(c.CallData),
		"nonce":           (*math.HexOrDecimal256)(new(big.Int).SetUint64(c.Nonce)),
		"tip":             (*math.HexOrDecimal256)(tip),
		"preSignedCheque": hexutil.Encode(c.PreSignedCheque),
	}
}

// BuildTypedData assembles the SubstrateCall typed data for domain
func BuildTypedData(domain apitypes.TypedDataDomain, call SubstrateCall) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       Types(),
		PrimaryType: PrimaryType,
		Domain:      domain,
		Message:     call.message(),
	}
}

// Hash is the digest an externally owned key signs for typedData
func Hash(typedData apitypes.TypedData) (types.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return types.Hash{}, errors.Wrapf(types.ErrEncodingMismatch, "failed to hash typed data: %v", err)
	}
	return types.HashFromBytes(digest)
}

// DomainSeparator is the struct hash of the typed data's domain
func DomainSeparator(typedData apitypes.TypedData) (types.Hash, error) {
	sep, err := typedData.HashStruct(domainType, typedData.Domain.Map())
	if err != nil {
		return types.Hash{}, errors.Wrapf(types.ErrEncodingMismatch, "failed to hash domain: %v", err)
	}
	return types.HashFromBytes(sep)
}
