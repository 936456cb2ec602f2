package sponsor

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/keyGenerator"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"golang.org/x/crypto/blake2b"
)

// ISigner is a sponsor key able to authorize cheques
type ISigner interface {
	Scheme() types.SignatureScheme
	AccountId() types.AccountId
	// Sign signs message the way the runtime's MultiSignature verifies it
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// EcdsaSigner signs through a key generator. The runtime verifies ECDSA
// signatures against blake2b-256 of the message and maps the signer to
// blake2b-256 of its compressed public key.
type EcdsaSigner struct {
	keys      keyGenerator.IKeyGenerator
	keyId     string
	accountId types.AccountId
}

func NewEcdsaSigner(ctx context.Context, keys keyGenerator.IKeyGenerator, keyId string) (*EcdsaSigner, error) {
	key, err := keys.GetECDSAKeyById(ctx, keyId)
	if err != nil {
		return nil, fmt.Errorf("failed to load sponsor key %s: %w", keyId, err)
	}
	pub, err := key.GetCompressedPublicKey()
	if err != nil {
		return nil, err
	}
	accountId, err := address.DeriveAccountId(pub, address.StrategyHashBased, address.TransparentLayout{})
	if err != nil {
		return nil, err
	}
	return &EcdsaSigner{keys: keys, keyId: keyId, accountId: accountId}, nil
}

func (s *EcdsaSigner) Scheme() types.SignatureScheme {
	return types.SchemeEcdsa
}

func (s *EcdsaSigner) AccountId() types.AccountId {
	return s.accountId
}

func (s *EcdsaSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	digest := blake2b.Sum256(message)
	return s.keys.SignDigest(ctx, s.keyId, digest[:])
}

// Sr25519Signer holds a schnorrkel keypair derived from a secret URI or mnemonic
type Sr25519Signer struct {
	pair      signature.KeyringPair
	accountId types.AccountId
}

func NewSr25519Signer(secretUri string, ss58Prefix uint16) (*Sr25519Signer, error) {
	pair, err := signature.KeyringPairFromSecret(secretUri, ss58Prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyMaterial, err)
	}
	accountId, err := types.AccountIdFromBytes(pair.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Sr25519Signer{pair: pair, accountId: accountId}, nil
}

func (s *Sr25519Signer) Scheme() types.SignatureScheme {
	return types.SchemeSr25519
}

func (s *Sr25519Signer) AccountId() types.AccountId {
	return s.accountId
}

// Address is the signer's SS58 address under the prefix it was created with
func (s *Sr25519Signer) Address() string {
	return s.pair.Address
}

func (s *Sr25519Signer) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return signature.Sign(message, s.pair.URI)
}
