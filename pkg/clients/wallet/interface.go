package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// IWallet is the JSON-RPC surface of an externally owned key holder: a
// browser wallet bridge, a remote signer or a development node.
type IWallet interface {
	// EthAccounts corresponds to the eth_accounts JSON-RPC method
	EthAccounts(ctx context.Context) ([]common.Address, error)

	// PersonalSign signs message with the personal-message prefix applied by
	// the wallet. This corresponds to the personal_sign JSON-RPC method.
	PersonalSign(ctx context.Context, account common.Address, message []byte) ([]byte, error)

	// EthSignTypedData signs typed data with the configured typed-data method,
	// eth_signTypedData_v4 by default.
	EthSignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error)

	Close()
}

var _ IWallet = (*Client)(nil)
