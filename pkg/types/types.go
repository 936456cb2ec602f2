package types

import (
	"encoding/json"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	PublicKeyLength = 33
	AccountIdLength = 32
	HashLength      = 32
)

// PublicKey is a compressed secp256k1 point
type PublicKey [PublicKeyLength]byte

// PublicKeyFromBytes validates that b is a 33 byte compressed point on the curve
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, errors.Wrapf(ErrInvalidKeyMaterial, "public key must be %d bytes, got %d", PublicKeyLength, len(b))
	}
	if _, err := crypto.DecompressPubkey(b); err != nil {
		return pk, errors.Wrapf(ErrInvalidKeyMaterial, "public key is not a valid compressed point: %v", err)
	}
	copy(pk[:], b)
	return pk, nil
}

// PublicKeyFromHex parses a 0x-prefixed compressed public key
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return PublicKey{}, errors.Wrapf(ErrInvalidKeyMaterial, "invalid public key hex: %v", err)
	}
	return PublicKeyFromBytes(b)
}

func (p PublicKey) Bytes() []byte {
	return p[:]
}

func (p PublicKey) Hex() string {
	return hexutil.Encode(p[:])
}

func (p PublicKey) String() string {
	return p.Hex()
}

// Uncompressed returns the 64 byte X||Y form without the 0x04 marker
func (p PublicKey) Uncompressed() ([]byte, error) {
	pub, err := crypto.DecompressPubkey(p[:])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
	}
	return crypto.FromECDSAPub(pub)[1:], nil
}

func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.Hex()), nil
}

func (p *PublicKey) UnmarshalText(text []byte) error {
	pk, err := PublicKeyFromHex(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// AccountId is the 32 byte chain-native account identifier
type AccountId [AccountIdLength]byte

func AccountIdFromBytes(b []byte) (AccountId, error) {
	var a AccountId
	if len(b) != AccountIdLength {
		return a, fmt.Errorf("account id must be %d bytes, got %d", AccountIdLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func AccountIdFromHex(s string) (AccountId, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return AccountId{}, fmt.Errorf("invalid account id hex: %w", err)
	}
	return AccountIdFromBytes(b)
}

func (a AccountId) Bytes() []byte {
	return a[:]
}

func (a AccountId) Hex() string {
	return hexutil.Encode(a[:])
}

func (a AccountId) IsZero() bool {
	return a == AccountId{}
}

func (a AccountId) Encode(encoder scale.Encoder) error {
	return encoder.Write(a[:])
}

func (a *AccountId) Decode(decoder scale.Decoder) error {
	return decoder.Read(a[:])
}

func (a AccountId) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *AccountId) UnmarshalText(text []byte) error {
	id, err := AccountIdFromHex(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// Hash is a 32 byte runtime hash (blake2b-256 on the target chain)
type Hash [HashLength]byte

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLength {
		return h, fmt.Errorf("hash must be %d bytes, got %d", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Hash) Encode(encoder scale.Encoder) error {
	return encoder.Write(h[:])
}

func (h *Hash) Decode(decoder scale.Decoder) error {
	return decoder.Read(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	parsed, err := HashFromBytes(b)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Option is an explicit present/absent value. It encodes as a single presence
// byte (0x00 / 0x01) followed by the value when present.
type Option[T any] struct {
	value T
	some  bool
}

func Some[T any](v T) Option[T] {
	return Option[T]{value: v, some: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) IsSome() bool {
	return o.some
}

func (o Option[T]) IsNone() bool {
	return !o.some
}

// Unwrap returns the value and whether it was present
func (o Option[T]) Unwrap() (T, bool) {
	return o.value, o.some
}

// ValueOr returns the value when present, otherwise d
func (o Option[T]) ValueOr(d T) T {
	if o.some {
		return o.value
	}
	return d
}

func (o Option[T]) Encode(encoder scale.Encoder) error {
	return encoder.EncodeOption(o.some, o.value)
}

func (o *Option[T]) Decode(decoder scale.Decoder) error {
	tag, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		*o = None[T]()
		return nil
	case 1:
		var v T
		if err := DecodeInto(decoder, &v); err != nil {
			return err
		}
		*o = Some(v)
		return nil
	default:
		return fmt.Errorf("invalid option tag 0x%02x", tag)
	}
}

// DecodeInto decodes the next value into target. Targets with their own Decode
// method are called directly, since the reflective decoder cannot build
// fixed-size array types such as AccountId and Hash.
func DecodeInto(decoder scale.Decoder, target interface{}) error {
	if d, ok := target.(scale.Decodeable); ok {
		return d.Decode(decoder)
	}
	return decoder.Decode(target)
}

func (o Option[T]) MarshalJSON() ([]byte, error) {
	if !o.some {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Option[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
