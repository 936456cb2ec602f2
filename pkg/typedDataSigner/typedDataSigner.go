package typedDataSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/clients/wallet"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// ITypedDataSigner is the externally owned key that authorizes meta-calls.
// Signing may block on human approval; implementations must return when ctx
// is done and report a declined request as ErrCancelled.
type ITypedDataSigner interface {
	// GetPublicAddress returns the EVM address of the signing key
	GetPublicAddress(ctx context.Context) (common.Address, error)

	// SignPersonalMessage signs message with the personal-message prefix
	SignPersonalMessage(ctx context.Context, message []byte) (types.EvmSignature, error)

	// SignTypedData signs the typed-data digest of typedData
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) (types.EvmSignature, error)
}

// IPublicKeyProvider is implemented by signers that can hand out their public
// key without signing anything
type IPublicKeyProvider interface {
	GetPublicKey(ctx context.Context) (types.PublicKey, error)
}

type SignerConfig struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`

	WalletUrl       string `json:"walletUrl" yaml:"walletUrl"`
	WalletAccount   string `json:"walletAccount" yaml:"walletAccount"`
	TypedDataMethod string `json:"typedDataMethod" yaml:"typedDataMethod"`
}

// NewTypedDataSigner returns a local key signer when a private key is
// configured, otherwise a signer backed by a JSON-RPC wallet.
func NewTypedDataSigner(ctx context.Context, cfg *SignerConfig, logger *zap.Logger) (ITypedDataSigner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("signer config cannot be nil")
	}
	if cfg.PrivateKey != "" {
		return NewPrivateKeySigner(cfg.PrivateKey, logger)
	}
	if cfg.WalletUrl == "" {
		return nil, fmt.Errorf("either a private key or a wallet url is required")
	}

	client, err := wallet.NewClient(ctx, &wallet.Config{
		Url:             cfg.WalletUrl,
		TypedDataMethod: cfg.TypedDataMethod,
	}, logger)
	if err != nil {
		return nil, err
	}

	var account *common.Address
	if cfg.WalletAccount != "" {
		if !common.IsHexAddress(cfg.WalletAccount) {
			return nil, fmt.Errorf("invalid wallet account %q", cfg.WalletAccount)
		}
		addr := common.HexToAddress(cfg.WalletAccount)
		account = &addr
	}
	return NewWalletSigner(client, account, logger), nil
}
