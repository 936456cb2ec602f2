package typedDataSigner

import (
	"context"
	"testing"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/tests"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/testutil"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func demoTypedData(t *testing.T) apitypes.TypedData {
	domain, err := eip712.BuildDomain(eip712.ChainMetadata{Name: "Substrate", Version: "1"})
	require.NoError(t, err)
	return eip712.BuildTypedData(domain, eip712.SubstrateCall{
		Who:      tests.DemoHashBasedSS58,
		CallData: hexutil.MustDecode(tests.RemarkCallHex),
	})
}

func newSigners(t *testing.T) map[string]ITypedDataSigner {
	key, err := crypto.HexToECDSA(tests.DemoPrivateKeyHex[2:])
	require.NoError(t, err)

	w := testutil.NewFakeWallet(key)
	url := testutil.StartFakeWallet(t, w)

	local, err := NewTypedDataSigner(context.Background(), &SignerConfig{PrivateKey: tests.DemoPrivateKeyHex}, zaptest.NewLogger(t))
	require.NoError(t, err)
	remote, err := NewTypedDataSigner(context.Background(), &SignerConfig{WalletUrl: url}, zaptest.NewLogger(t))
	require.NoError(t, err)

	return map[string]ITypedDataSigner{"local": local, "wallet": remote}
}

func Test_TypedDataSigners(t *testing.T) {
	for name, signer := range newSigners(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			addr, err := signer.GetPublicAddress(ctx)
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(tests.DemoEvmAddressHex), addr)

			td := demoTypedData(t)
			sig, err := signer.SignTypedData(ctx, td)
			require.NoError(t, err)
			assert.Contains(t, []byte{27, 28}, sig.V)

			digest, err := eip712.Hash(td)
			require.NoError(t, err)
			pub, err := recovery.RecoverFromTypedDataSignature(digest, sig)
			require.NoError(t, err)
			assert.Equal(t, tests.DemoCompressedPublicKeyHex, pub.Hex())

			message := []byte("link my account")
			sig, err = signer.SignPersonalMessage(ctx, message)
			require.NoError(t, err)
			pub, err = recovery.RecoverFromPersonalMessage(message, sig)
			require.NoError(t, err)
			assert.Equal(t, tests.DemoCompressedPublicKeyHex, pub.Hex())
		})
	}
}

func Test_PrivateKeySigner_CancelledContext(t *testing.T) {
	signer, err := NewPrivateKeySigner(tests.DemoPrivateKeyHex, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.SignTypedData(ctx, demoTypedData(t))
	require.ErrorIs(t, err, types.ErrCancelled)
}

func Test_NewTypedDataSigner_Errors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewTypedDataSigner(context.Background(), nil, logger)
	require.Error(t, err)

	_, err = NewTypedDataSigner(context.Background(), &SignerConfig{}, logger)
	require.Error(t, err)

	_, err = NewTypedDataSigner(context.Background(), &SignerConfig{PrivateKey: "0x00"}, logger)
	require.ErrorIs(t, err, types.ErrInvalidKeyMaterial)

	_, err = NewTypedDataSigner(context.Background(), &SignerConfig{WalletUrl: "http://127.0.0.1:1", WalletAccount: "nope"}, logger)
	require.Error(t, err)
}

func Test_PrivateKeySigner_GetPublicKey(t *testing.T) {
	signer, err := NewPrivateKeySigner(tests.DemoPrivateKeyHex, zaptest.NewLogger(t))
	require.NoError(t, err)

	var provider IPublicKeyProvider = signer
	pub, err := provider.GetPublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tests.DemoCompressedPublicKeyHex, pub.Hex())
}
