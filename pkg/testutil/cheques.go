package testutil

import (
	"bytes"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
)

// NewSignedCheque builds a structurally valid PreSignedCheque for storage tests.
// The signature is filler and won't verify.
func NewSignedCheque(deadline uint32, signerByte byte) *cheque.PreSignedCheque {
	var signer types.AccountId
	copy(signer[:], bytes.Repeat([]byte{signerByte}, len(signer)))

	sig, err := types.NewMultiSignature(types.SchemeSr25519, bytes.Repeat([]byte{0x11}, types.Sr25519SignatureLength))
	if err != nil {
		panic(err)
	}
	return &cheque.PreSignedCheque{
		Cheque:    *cheque.New(deadline, cheque.Balance(1), cheque.Balance(0)),
		Signature: sig,
		Signer:    signer,
	}
}
