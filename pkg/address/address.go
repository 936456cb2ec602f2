package address

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Strategy selects how a compressed public key is mapped to an AccountId
type Strategy uint8

const (
	// StrategyHashBased maps a key to blake2b-256(compressedPublicKey)
	StrategyHashBased Strategy = iota + 1
	// StrategyTransparent keeps the 20 byte EVM address visible inside the AccountId
	StrategyTransparent
)

func (s Strategy) String() string {
	switch s {
	case StrategyHashBased:
		return "hash-based"
	case StrategyTransparent:
		return "transparent"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Protocol versions exposed by the chain module's EIP712Version constant
const (
	ProtocolVersionHashBased   = "1"
	ProtocolVersionTransparent = "2"
)

// StrategyForVersion returns the derivation strategy the chain module uses for
// the given protocol version.
func StrategyForVersion(version string) (Strategy, error) {
	switch version {
	case ProtocolVersionHashBased:
		return StrategyHashBased, nil
	case ProtocolVersionTransparent:
		return StrategyTransparent, nil
	default:
		return 0, errors.Wrapf(types.ErrUnsupportedProtocolVersion, "no address strategy for version %q", version)
	}
}

// SupportedVersions lists every protocol version with a known strategy
func SupportedVersions() []string {
	return []string{ProtocolVersionHashBased, ProtocolVersionTransparent}
}

// TagPosition places the transparent tag before or after the key material
type TagPosition uint8

const (
	TagSuffix TagPosition = iota
	TagPrefix
)

const (
	transparentBodyLength = common.AddressLength
	transparentTagLength  = types.AccountIdLength - transparentBodyLength

	DefaultTransparentTag = "@evm_address"
)

// TransparentLayout is the byte layout of a transparent AccountId. It must match
// the constant compiled into the deployed chain module.
type TransparentLayout struct {
	Tag      []byte
	Position TagPosition
}

// DefaultTransparentLayout is 20 bytes of EVM address followed by "@evm_address"
func DefaultTransparentLayout() TransparentLayout {
	return TransparentLayout{
		Tag:      []byte(DefaultTransparentTag),
		Position: TagSuffix,
	}
}

func (l TransparentLayout) Validate() error {
	if len(l.Tag) > transparentTagLength {
		return fmt.Errorf("transparent tag must be at most %d bytes, got %d", transparentTagLength, len(l.Tag))
	}
	if l.Position != TagSuffix && l.Position != TagPrefix {
		return fmt.Errorf("unknown tag position %d", l.Position)
	}
	return nil
}

// DeriveCompressedPublicKey multiplies the base point by privateKey
func DeriveCompressedPublicKey(privateKey []byte) (types.PublicKey, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return types.PublicKey{}, errors.Wrapf(types.ErrInvalidKeyMaterial, "invalid private key: %v", err)
	}
	return PublicKeyFromECDSA(&key.PublicKey)
}

// PublicKeyFromECDSA compresses an already parsed secp256k1 public key
func PublicKeyFromECDSA(pub *ecdsa.PublicKey) (types.PublicKey, error) {
	if pub == nil {
		return types.PublicKey{}, errors.Wrap(types.ErrInvalidKeyMaterial, "public key is nil")
	}
	return types.PublicKeyFromBytes(crypto.CompressPubkey(pub))
}

// EvmAddress is keccak256(uncompressed key)[12:], the key's EVM address
func EvmAddress(pub types.PublicKey) (common.Address, error) {
	key, err := crypto.DecompressPubkey(pub[:])
	if err != nil {
		return common.Address{}, errors.Wrapf(types.ErrInvalidKeyMaterial, "failed to decompress public key: %v", err)
	}
	return crypto.PubkeyToAddress(*key), nil
}

// DeriveAccountId maps pub to an AccountId with the given strategy. layout is
// only consulted by StrategyTransparent.
func DeriveAccountId(pub types.PublicKey, strategy Strategy, layout TransparentLayout) (types.AccountId, error) {
	switch strategy {
	case StrategyHashBased:
		return types.AccountId(blake2b.Sum256(pub[:])), nil
	case StrategyTransparent:
		return deriveTransparent(pub, layout)
	default:
		return types.AccountId{}, fmt.Errorf("unknown address strategy %d", uint8(strategy))
	}
}

func deriveTransparent(pub types.PublicKey, layout TransparentLayout) (types.AccountId, error) {
	if err := layout.Validate(); err != nil {
		return types.AccountId{}, err
	}
	addr, err := EvmAddress(pub)
	if err != nil {
		return types.AccountId{}, err
	}

	var tag [transparentTagLength]byte
	copy(tag[:], layout.Tag)

	var id types.AccountId
	switch layout.Position {
	case TagPrefix:
		copy(id[:transparentTagLength], tag[:])
		copy(id[transparentTagLength:], addr.Bytes())
	default:
		copy(id[:transparentBodyLength], addr.Bytes())
		copy(id[transparentBodyLength:], tag[:])
	}
	return id, nil
}

// Deriver binds a strategy and layout so callers resolve them once per session
type Deriver struct {
	strategy Strategy
	layout   TransparentLayout
}

func NewDeriver(strategy Strategy, layout TransparentLayout) (*Deriver, error) {
	switch strategy {
	case StrategyHashBased:
	case StrategyTransparent:
		if err := layout.Validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown address strategy %d", uint8(strategy))
	}
	return &Deriver{strategy: strategy, layout: layout}, nil
}

// NewDeriverForVersion resolves the strategy from a protocol version
func NewDeriverForVersion(version string, layout TransparentLayout) (*Deriver, error) {
	strategy, err := StrategyForVersion(version)
	if err != nil {
		return nil, err
	}
	return NewDeriver(strategy, layout)
}

func (d *Deriver) Strategy() Strategy {
	return d.strategy
}

func (d *Deriver) AccountId(pub types.PublicKey) (types.AccountId, error) {
	return DeriveAccountId(pub, d.strategy, d.layout)
}
