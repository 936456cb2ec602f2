package keyGenerator

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// GeneratedECDSAKey is a secp256k1 sponsor key held by a key generator. The
// private half never leaves the generator.
type GeneratedECDSAKey struct {
	PublicKey *ecdsa.PublicKey
	Address   string
	KeyId     string
}

func (gek *GeneratedECDSAKey) GetPublicKeyBytes() ([]byte, error) {
	if gek.PublicKey == nil {
		return nil, fmt.Errorf("public key is nil")
	}
	return crypto.FromECDSAPub(gek.PublicKey), nil
}

func (gek *GeneratedECDSAKey) GetPublicKeyHex() (string, error) {
	pubKeyBytes, err := gek.GetPublicKeyBytes()
	if err != nil {
		return "", fmt.Errorf("failed to get public key bytes: %w", err)
	}
	return hexutil.Encode(pubKeyBytes), nil
}

// GetCompressedPublicKey returns the 33 byte form used for account derivation
func (gek *GeneratedECDSAKey) GetCompressedPublicKey() (types.PublicKey, error) {
	if gek.PublicKey == nil {
		return types.PublicKey{}, fmt.Errorf("public key is nil")
	}
	return types.PublicKeyFromBytes(crypto.CompressPubkey(gek.PublicKey))
}

type IKeyGenerator interface {
	GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*GeneratedECDSAKey, error)
	GetECDSAKeyById(ctx context.Context, keyId string) (*GeneratedECDSAKey, error)
	// SignDigest signs a 32 byte digest and returns r || s || v with v in {0, 1}
	SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error)
}
