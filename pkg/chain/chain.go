package chain

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
)

// CallDescriptor names a runtime call as "Module.function" with its arguments.
// Arguments are encoded with the SCALE codec in order.
type CallDescriptor struct {
	Name string
	Args []interface{}
}

// Receipt acknowledges that the node accepted an extrinsic into its pool
type Receipt struct {
	ExtrinsicHash types.Hash `json:"extrinsicHash"`
}

// IChainClient is the node-facing collaborator of a meta-call
type IChainClient interface {
	// ChainMetadata returns the typed-data constants of the account mapping module
	ChainMetadata(ctx context.Context) (eip712.ChainMetadata, error)

	// EncodeCall returns the canonical bytes (call index followed by arguments) of call
	EncodeCall(ctx context.Context, call CallDescriptor) ([]byte, error)

	// Submit sends callBytes as an unsigned extrinsic. A rejection by the node
	// wraps ErrSubmissionRejected.
	Submit(ctx context.Context, callBytes []byte) (*Receipt, error)

	// BlockNumber returns the latest block height
	BlockNumber(ctx context.Context) (uint32, error)

	// AccountNonce returns the next nonce for who
	AccountNonce(ctx context.Context, who types.AccountId) (uint64, error)

	// FreeBalance returns the free balance held by who
	FreeBalance(ctx context.Context, who types.AccountId) (*big.Int, error)
}

const (
	MetaCallName          = "EvmAccountMapping.meta_call"
	RemoteCallFromEvmName = "AccountAbstraction.remote_call_from_evm_chain"
	RemarkWithEventName   = "System.remark_with_event"
	MappingModuleName     = "EvmAccountMapping"
	Eip712NameConstant    = "EIP712Name"
	Eip712VersionConstant = "EIP712Version"
)
