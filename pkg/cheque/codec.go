package cheque

import (
	"bytes"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

func encode(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := scale.NewEncoder(&buf).Encode(value); err != nil {
		return nil, errors.Wrapf(types.ErrEncodingMismatch, "%v", err)
	}
	return buf.Bytes(), nil
}

// decodeExact decodes data into target and rejects trailing bytes
func decodeExact(data []byte, target interface{}) error {
	reader := bytes.NewReader(data)
	if err := types.DecodeInto(*scale.NewDecoder(reader), target); err != nil {
		return errors.Wrapf(types.ErrEncodingMismatch, "%v", err)
	}
	if reader.Len() != 0 {
		return errors.Wrapf(types.ErrEncodingMismatch, "%d trailing bytes", reader.Len())
	}
	return nil
}

// EncodeCheque returns the canonical encoding the sponsor signs and the chain verifies
func EncodeCheque(c *Cheque) ([]byte, error) {
	if c == nil {
		return nil, errors.Wrap(types.ErrEncodingMismatch, "cheque is nil")
	}
	return encode(*c)
}

func DecodeCheque(data []byte) (*Cheque, error) {
	c := &Cheque{}
	if err := decodeExact(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeSignedCheque concatenates the encoded cheque, its signature and the signer
func EncodeSignedCheque(p *PreSignedCheque) ([]byte, error) {
	if p == nil {
		return nil, errors.Wrap(types.ErrEncodingMismatch, "pre-signed cheque is nil")
	}
	return encode(*p)
}

func DecodeSignedCheque(data []byte) (*PreSignedCheque, error) {
	p := &PreSignedCheque{}
	if err := decodeExact(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CallHash is blake2b-256 of a call's canonical bytes, the value used for OnlyCallHash
func CallHash(call []byte) types.Hash {
	return types.Hash(blake2b.Sum256(call))
}

// SigningPayload is the digest an ECDSA sponsor signs for c
func SigningPayload(c *Cheque) (types.Hash, error) {
	b, err := EncodeCheque(c)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Hash(blake2b.Sum256(b)), nil
}

// ContentKey addresses a pre-signed cheque by the hash of its signed encoding
func ContentKey(p *PreSignedCheque) (types.Hash, error) {
	b, err := EncodeSignedCheque(p)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Hash(blake2b.Sum256(b)), nil
}
