package address

import (
	"bytes"
	"fmt"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultSS58Prefix is the generic Substrate network prefix
	DefaultSS58Prefix uint16 = 42

	maxSS58Prefix      uint16 = 16383
	ss58ChecksumLength        = 2
)

var ss58Context = []byte("SS58PRE")

func ss58PrefixBytes(prefix uint16) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix <= maxSS58Prefix:
		first := byte((prefix&0b11111100)>>2) | 0b01000000
		second := byte(prefix>>8) | byte(prefix&0b11)<<6
		return []byte{first, second}, nil
	default:
		return nil, fmt.Errorf("ss58 prefix %d out of range", prefix)
	}
}

func ss58Checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Context)
	h.Write(data)
	return h.Sum(nil)[:ss58ChecksumLength]
}

// EncodeSS58 renders an AccountId as a base58 SS58 string for the given network prefix
func EncodeSS58(id types.AccountId, prefix uint16) (string, error) {
	payload, err := ss58PrefixBytes(prefix)
	if err != nil {
		return "", err
	}
	payload = append(payload, id[:]...)
	payload = append(payload, ss58Checksum(payload)...)
	return base58.Encode(payload), nil
}

// DecodeSS58 parses an SS58 string and returns the account and its network prefix
func DecodeSS58(s string) (types.AccountId, uint16, error) {
	data := base58.Decode(s)
	if len(data) == 0 {
		return types.AccountId{}, 0, fmt.Errorf("invalid base58 in ss58 address %q", s)
	}

	var (
		prefixLen int
		prefix    uint16
	)
	switch {
	case data[0] < 64:
		prefixLen, prefix = 1, uint16(data[0])
	case data[0] < 128:
		if len(data) < 2 {
			return types.AccountId{}, 0, fmt.Errorf("ss58 address %q is truncated", s)
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b00111111
		prefixLen, prefix = 2, uint16(lower)|uint16(upper)<<8
	default:
		return types.AccountId{}, 0, fmt.Errorf("unknown ss58 address format in %q", s)
	}

	if len(data) != prefixLen+types.AccountIdLength+ss58ChecksumLength {
		return types.AccountId{}, 0, fmt.Errorf("ss58 address %q has unexpected length %d", s, len(data))
	}
	body := data[:prefixLen+types.AccountIdLength]
	if !bytes.Equal(ss58Checksum(body), data[len(body):]) {
		return types.AccountId{}, 0, fmt.Errorf("ss58 checksum mismatch for %q", s)
	}

	var id types.AccountId
	copy(id[:], body[prefixLen:])
	return id, prefix, nil
}
