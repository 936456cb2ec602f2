package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/tests"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/testutil"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T, cfg *Config) (*Client, *testutil.FakeWallet) {
	key, err := crypto.HexToECDSA(tests.DemoPrivateKeyHex[2:])
	require.NoError(t, err)

	w := testutil.NewFakeWallet(key)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Url = testutil.StartFakeWallet(t, w)

	client, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, w
}

func demoTypedData(t *testing.T) eip712.SubstrateCall {
	return eip712.SubstrateCall{
		Who:      tests.DemoHashBasedSS58,
		CallData: hexutil.MustDecode(tests.RemarkCallHex),
	}
}

func Test_Client(t *testing.T) {
	client, w := setup(t, nil)
	ctx := context.Background()

	t.Run("eth_accounts", func(t *testing.T) {
		accounts, err := client.EthAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, w.Address(), accounts[0])
	})

	t.Run("personal_sign", func(t *testing.T) {
		message := []byte("hello")
		raw, err := client.PersonalSign(ctx, w.Address(), message)
		require.NoError(t, err)

		sig, err := types.EvmSignatureFromBytes(raw)
		require.NoError(t, err)
		pub, err := recovery.RecoverFromPersonalMessage(message, sig)
		require.NoError(t, err)
		assert.Equal(t, tests.DemoCompressedPublicKeyHex, pub.Hex())
	})

	t.Run("eth_signTypedData_v4", func(t *testing.T) {
		domain, err := eip712.BuildDomain(eip712.ChainMetadata{Name: "Substrate", Version: "1"})
		require.NoError(t, err)
		td := eip712.BuildTypedData(domain, demoTypedData(t))

		raw, err := client.EthSignTypedData(ctx, w.Address(), td)
		require.NoError(t, err)
		assert.Equal(t, 1, w.RequestCount("eth_signTypedData_v4"))

		digest, err := eip712.Hash(td)
		require.NoError(t, err)
		assert.Equal(t, tests.DigestV1NoChequeHex, digest.Hex())

		sig, err := types.EvmSignatureFromBytes(raw)
		require.NoError(t, err)
		pub, err := recovery.RecoverFromTypedDataSignature(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, tests.DemoCompressedPublicKeyHex, pub.Hex())
	})

	t.Run("user rejection", func(t *testing.T) {
		w.SetReject(true)
		defer w.SetReject(false)

		_, err := client.PersonalSign(ctx, w.Address(), []byte("hello"))
		require.ErrorIs(t, err, types.ErrCancelled)
	})

	t.Run("other errors are not cancellations", func(t *testing.T) {
		_, err := client.PersonalSign(ctx, [20]byte{1}, []byte("hello"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrCancelled)
	})
}

func Test_Client_LegacyTypedDataMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TypedDataMethod = "eth_signTypedData"
	client, w := setup(t, cfg)

	domain, err := eip712.BuildDomain(eip712.ChainMetadata{Name: "Substrate", Version: "2"})
	require.NoError(t, err)
	_, err = client.EthSignTypedData(context.Background(), w.Address(), eip712.BuildTypedData(domain, demoTypedData(t)))
	require.NoError(t, err)
	assert.Equal(t, 1, w.RequestCount("eth_signTypedData"))
	assert.Equal(t, 0, w.RequestCount("eth_signTypedData_v4"))
}

func Test_Client_CancelWhilePending(t *testing.T) {
	client, w := setup(t, nil)
	w.Hold = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.PersonalSign(ctx, w.Address(), []byte("hello"))
	require.ErrorIs(t, err, types.ErrCancelled)
}

func Test_NewClient_RequiresUrl(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{}, zaptest.NewLogger(t))
	require.Error(t, err)
}
