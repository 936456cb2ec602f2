package typedDataSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrivateKeySigner signs with an in-process key and never prompts
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *zap.Logger
}

func NewPrivateKeySigner(privateKeyHex string, logger *zap.Logger) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidKeyMaterial, "failed to parse private key: %v", err)
	}
	return NewPrivateKeySignerFromECDSA(key, logger), nil
}

func NewPrivateKeySignerFromECDSA(key *ecdsa.PrivateKey, logger *zap.Logger) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}
}

func (s *PrivateKeySigner) GetPublicAddress(ctx context.Context) (common.Address, error) {
	return s.address, nil
}

// GetPublicKey exposes the key directly, so no signature round trip is needed
// to resolve the account.
func (s *PrivateKeySigner) GetPublicKey(ctx context.Context) (types.PublicKey, error) {
	return address.PublicKeyFromECDSA(&s.key.PublicKey)
}

func (s *PrivateKeySigner) SignPersonalMessage(ctx context.Context, message []byte) (types.EvmSignature, error) {
	return s.signDigest(ctx, recovery.PersonalMessageHash(message))
}

func (s *PrivateKeySigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) (types.EvmSignature, error) {
	digest, err := eip712.Hash(typedData)
	if err != nil {
		return types.EvmSignature{}, err
	}
	s.logger.Debug("Signing typed data with local key",
		zap.String("address", s.address.Hex()),
		zap.String("digest", digest.Hex()),
	)
	return s.signDigest(ctx, digest)
}

func (s *PrivateKeySigner) signDigest(ctx context.Context, digest types.Hash) (types.EvmSignature, error) {
	if err := ctx.Err(); err != nil {
		return types.EvmSignature{}, errors.Wrapf(types.ErrCancelled, "%v", err)
	}
	raw, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return types.EvmSignature{}, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig, err := types.EvmSignatureFromBytes(raw)
	if err != nil {
		return types.EvmSignature{}, err
	}
	return sig.WithWalletV(), nil
}
