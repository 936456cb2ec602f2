package typedDataSigner

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/clients/wallet"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// WalletSigner forwards signing requests to a JSON-RPC wallet
type WalletSigner struct {
	client wallet.IWallet
	logger *zap.Logger

	mu      sync.Mutex
	account *common.Address
}

// NewWalletSigner signs as account, or as the wallet's first account when nil
func NewWalletSigner(client wallet.IWallet, account *common.Address, logger *zap.Logger) *WalletSigner {
	return &WalletSigner{
		client:  client,
		account: account,
		logger:  logger,
	}
}

func (s *WalletSigner) GetPublicAddress(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account != nil {
		return *s.account, nil
	}

	accounts, err := s.client.EthAccounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("wallet exposes no accounts")
	}
	s.account = &accounts[0]
	s.logger.Info("Using wallet account", zap.String("address", accounts[0].Hex()))
	return accounts[0], nil
}

func (s *WalletSigner) SignPersonalMessage(ctx context.Context, message []byte) (types.EvmSignature, error) {
	account, err := s.GetPublicAddress(ctx)
	if err != nil {
		return types.EvmSignature{}, err
	}
	raw, err := s.client.PersonalSign(ctx, account, message)
	if err != nil {
		return types.EvmSignature{}, err
	}
	return types.EvmSignatureFromBytes(raw)
}

func (s *WalletSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) (types.EvmSignature, error) {
	account, err := s.GetPublicAddress(ctx)
	if err != nil {
		return types.EvmSignature{}, err
	}
	s.logger.Info("Requesting typed data signature from wallet",
		zap.String("address", account.Hex()),
		zap.String("primaryType", typedData.PrimaryType),
	)
	raw, err := s.client.EthSignTypedData(ctx, account, typedData)
	if err != nil {
		return types.EvmSignature{}, err
	}
	return types.EvmSignatureFromBytes(raw)
}
