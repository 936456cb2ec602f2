package sponsor

import (
	"context"
	"testing"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/evm-account-mapping-go/internal/tests"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedhavyas/go-subkey/v2/ed25519"
	"go.uber.org/zap/zaptest"
)

func demoCheque() *cheque.Cheque {
	return cheque.New(1000, cheque.Balance(100), cheque.Balance(0)).
		WithOnlyCallHash(cheque.CallHash(hexutil.MustDecode(tests.RemarkCallHex)))
}

func newEcdsaSigner(t *testing.T) *EcdsaSigner {
	keys := localKeyGenerator.NewLocalKeyGenerator(zaptest.NewLogger(t))
	require.NoError(t, keys.LoadPrivateKeyFromHex("sponsor", tests.DemoPrivateKeyHex, "sponsor", "sponsor"))

	signer, err := NewEcdsaSigner(context.Background(), keys, "sponsor")
	require.NoError(t, err)
	return signer
}

func Test_Issuer_Ecdsa(t *testing.T) {
	signer := newEcdsaSigner(t)
	assert.Equal(t, tests.DemoHashBasedAccountIdHex, signer.AccountId().Hex())

	issuer := NewIssuer(signer, zaptest.NewLogger(t))
	psc, err := issuer.Issue(context.Background(), demoCheque())
	require.NoError(t, err)

	assert.Equal(t, types.SchemeEcdsa, psc.Signature.Scheme)
	assert.Len(t, psc.Signature.Signature, types.EcdsaSignatureLength)
	assert.Equal(t, issuer.Signer(), psc.Signer)
	require.NoError(t, Verify(psc))

	t.Run("survives the wire", func(t *testing.T) {
		encoded, err := cheque.EncodeSignedCheque(psc)
		require.NoError(t, err)
		decoded, err := cheque.DecodeSignedCheque(encoded)
		require.NoError(t, err)
		require.NoError(t, Verify(decoded))
	})

	t.Run("tampered cheque", func(t *testing.T) {
		tampered := *psc
		tampered.Cheque.Deadline++
		require.ErrorIs(t, Verify(&tampered), types.ErrSignatureMismatch)
	})

	t.Run("wrong signer", func(t *testing.T) {
		tampered := *psc
		tampered.Signer = types.AccountId{1}
		require.ErrorIs(t, Verify(&tampered), types.ErrSignatureMismatch)
	})
}

func Test_Issuer_Sr25519(t *testing.T) {
	for _, uri := range []string{tests.DemoSponsorMnemonic, "//Alice"} {
		signer, err := NewSr25519Signer(uri, 42)
		require.NoError(t, err)
		assert.NotEmpty(t, signer.Address())

		psc, err := NewIssuer(signer, zaptest.NewLogger(t)).Issue(context.Background(), demoCheque())
		require.NoError(t, err)
		assert.Equal(t, types.SchemeSr25519, psc.Signature.Scheme)
		require.NoError(t, Verify(psc))

		tampered := *psc
		tampered.Cheque.SponsorMaximumTip = cheque.Balance(1)
		require.ErrorIs(t, Verify(&tampered), types.ErrSignatureMismatch)
	}
}

func Test_Verify_Ed25519(t *testing.T) {
	kp, err := ed25519.Scheme{}.Generate()
	require.NoError(t, err)

	c := demoCheque()
	encoded, err := cheque.EncodeCheque(c)
	require.NoError(t, err)
	sig, err := kp.Sign(encoded)
	require.NoError(t, err)

	multi, err := types.NewMultiSignature(types.SchemeEd25519, sig)
	require.NoError(t, err)
	signer, err := types.AccountIdFromBytes(kp.Public())
	require.NoError(t, err)

	psc := &cheque.PreSignedCheque{Cheque: *c, Signature: multi, Signer: signer}
	require.NoError(t, Verify(psc))

	psc.Cheque.Deadline = 1
	require.ErrorIs(t, Verify(psc), types.ErrSignatureMismatch)
}
