package types

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

const (
	EvmSignatureLength     = 65
	Ed25519SignatureLength = 64
	Sr25519SignatureLength = 64
	EcdsaSignatureLength   = 65
)

// EvmSignature is an r||s||v secp256k1 signature as produced by EVM wallets.
type EvmSignature struct {
	R [32]byte
	S [32]byte
	V byte
}

func EvmSignatureFromBytes(b []byte) (EvmSignature, error) {
	var sig EvmSignature
	if len(b) != EvmSignatureLength {
		return sig, errors.Wrapf(ErrRecoveryFailed, "signature must be %d bytes, got %d", EvmSignatureLength, len(b))
	}
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	return sig, nil
}

func EvmSignatureFromHex(s string) (EvmSignature, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return EvmSignature{}, errors.Wrapf(ErrRecoveryFailed, "invalid signature hex: %v", err)
	}
	return EvmSignatureFromBytes(b)
}

func (s EvmSignature) Bytes() []byte {
	out := make([]byte, EvmSignatureLength)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

func (s EvmSignature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// RecoveryBit maps v to the 0/1 recovery bit. Wallets emit v as 27/28 while raw
// secp256k1 signers emit 0/1; both conventions are accepted, anything else
// (including EIP-155 style chain-encoded v) is rejected.
func (s EvmSignature) RecoveryBit() (byte, error) {
	switch s.V {
	case 27, 28:
		return s.V - 27, nil
	case 0, 1:
		return s.V, nil
	default:
		return 0, errors.Wrapf(ErrRecoveryFailed, "invalid recovery id v=%d", s.V)
	}
}

// WithWalletV returns a copy normalised to the 27/28 convention
func (s EvmSignature) WithWalletV() EvmSignature {
	if s.V < 27 {
		s.V += 27
	}
	return s
}

func (s EvmSignature) Encode(encoder scale.Encoder) error {
	return encoder.Write(s.Bytes())
}

func (s *EvmSignature) Decode(decoder scale.Decoder) error {
	buf := make([]byte, EvmSignatureLength)
	if err := decoder.Read(buf); err != nil {
		return err
	}
	parsed, err := EvmSignatureFromBytes(buf)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s EvmSignature) MarshalText() ([]byte, error) {
	return []byte(s.Hex()), nil
}

func (s *EvmSignature) UnmarshalText(text []byte) error {
	parsed, err := EvmSignatureFromHex(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SignatureScheme is the variant index of the runtime MultiSignature enum
type SignatureScheme uint8

const (
	SchemeEd25519 SignatureScheme = 0
	SchemeSr25519 SignatureScheme = 1
	SchemeEcdsa   SignatureScheme = 2
)

func (s SignatureScheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSr25519:
		return "sr25519"
	case SchemeEcdsa:
		return "ecdsa"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s SignatureScheme) signatureLength() (int, error) {
	switch s {
	case SchemeEd25519:
		return Ed25519SignatureLength, nil
	case SchemeSr25519:
		return Sr25519SignatureLength, nil
	case SchemeEcdsa:
		return EcdsaSignatureLength, nil
	default:
		return 0, fmt.Errorf("unknown signature scheme %d", uint8(s))
	}
}

// MultiSignature mirrors the runtime's MultiSignature enum: one variant byte
// followed by a fixed-width signature.
type MultiSignature struct {
	Scheme    SignatureScheme `json:"scheme"`
	Signature hexutil.Bytes   `json:"signature"`
}

func NewMultiSignature(scheme SignatureScheme, sig []byte) (MultiSignature, error) {
	expected, err := scheme.signatureLength()
	if err != nil {
		return MultiSignature{}, err
	}
	if len(sig) != expected {
		return MultiSignature{}, fmt.Errorf("%s signature must be %d bytes, got %d", scheme, expected, len(sig))
	}
	return MultiSignature{Scheme: scheme, Signature: append([]byte(nil), sig...)}, nil
}

func (m MultiSignature) Encode(encoder scale.Encoder) error {
	expected, err := m.Scheme.signatureLength()
	if err != nil {
		return err
	}
	if len(m.Signature) != expected {
		return fmt.Errorf("%s signature must be %d bytes, got %d", m.Scheme, expected, len(m.Signature))
	}
	if err := encoder.PushByte(byte(m.Scheme)); err != nil {
		return err
	}
	return encoder.Write(m.Signature)
}

func (m *MultiSignature) Decode(decoder scale.Decoder) error {
	variant, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	scheme := SignatureScheme(variant)
	length, err := scheme.signatureLength()
	if err != nil {
		return err
	}
	sig := make([]byte, length)
	if err := decoder.Read(sig); err != nil {
		return err
	}
	m.Scheme = scheme
	m.Signature = sig
	return nil
}
