package metaCall

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/tests"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence/memory"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/sponsor"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/testutil"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/typedDataSigner"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var remarkCall = chain.CallDescriptor{
	Name: chain.RemarkWithEventName,
	Args: []interface{}{[]byte("Hello")},
}

var testReceipt = &chain.Receipt{ExtrinsicHash: types.Hash{0xab}}

// newChain returns a development chain running protocol version
func newChain(version string) *testutil.MockChainClient {
	c := &testutil.MockChainClient{}
	c.On("ChainMetadata", mock.Anything).Return(eip712.ChainMetadata{Name: "Substrate", Version: version}, nil)
	c.On("EncodeCall", mock.Anything, mock.Anything).Return(testutil.CallEncoder(testutil.DevCallIndices), nil)
	c.On("AccountNonce", mock.Anything, mock.Anything).Return(uint64(0), nil)
	c.On("BlockNumber", mock.Anything).Return(uint32(10), nil)
	c.On("FreeBalance", mock.Anything, mock.Anything).Return(cheque.Balance(1000), nil)
	return c
}

// issueDemoCheque signs the demo cheque with the demo sponsor mnemonic
func issueDemoCheque(t *testing.T, c *cheque.Cheque) *cheque.PreSignedCheque {
	t.Helper()
	signer, err := sponsor.NewSr25519Signer(tests.DemoSponsorMnemonic, address.DefaultSS58Prefix)
	require.NoError(t, err)
	psc, err := sponsor.NewIssuer(signer, zaptest.NewLogger(t)).Issue(context.Background(), c)
	require.NoError(t, err)
	return psc
}

func demoCheque() *cheque.Cheque {
	return cheque.New(1000, cheque.Balance(100), cheque.Balance(0)).
		WithOnlyCallHash(cheque.CallHash(hexutil.MustDecode(tests.RemarkCallHex)))
}

func newWalletSigner(t *testing.T) (typedDataSigner.ITypedDataSigner, *testutil.FakeWallet) {
	t.Helper()
	key, err := crypto.HexToECDSA(tests.DemoPrivateKeyHex[2:])
	require.NoError(t, err)
	w := testutil.NewFakeWallet(key)
	signer, err := typedDataSigner.NewTypedDataSigner(context.Background(), &typedDataSigner.SignerConfig{
		WalletUrl: testutil.StartFakeWallet(t, w),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return signer, w
}

func newLocalSigner(t *testing.T) *typedDataSigner.PrivateKeySigner {
	t.Helper()
	signer, err := typedDataSigner.NewPrivateKeySigner(tests.DemoPrivateKeyHex, zaptest.NewLogger(t))
	require.NoError(t, err)
	return signer
}

// stallingSigner hands out its key but only answers typed data requests once
// ctx is done, like a wallet prompt the user never answers
type stallingSigner struct {
	*typedDataSigner.PrivateKeySigner
	ignoreCtx bool
	requests  atomic.Int32
	release   chan struct{}
}

func (s *stallingSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) (types.EvmSignature, error) {
	s.requests.Add(1)
	if s.ignoreCtx {
		<-s.release
		return types.EvmSignature{}, errors.New("released")
	}
	<-ctx.Done()
	return types.EvmSignature{}, ctx.Err()
}

// rejectingSigner declines every typed data request
type rejectingSigner struct {
	*typedDataSigner.PrivateKeySigner
}

func (s *rejectingSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) (types.EvmSignature, error) {
	return types.EvmSignature{}, errors.Wrap(types.ErrCancelled, "user rejected the request")
}

// wrongKeySigner answers with a signature from a different key
type wrongKeySigner struct {
	*typedDataSigner.PrivateKeySigner
	other *typedDataSigner.PrivateKeySigner
}

func (s *wrongKeySigner) SignTypedData(ctx context.Context, td apitypes.TypedData) (types.EvmSignature, error) {
	return s.other.SignTypedData(ctx, td)
}

func Test_Orchestrator_EndToEnd(t *testing.T) {
	walletSigner, wallet := newWalletSigner(t)

	signers := map[string]typedDataSigner.ITypedDataSigner{
		"local key": newLocalSigner(t),
		"wallet":    walletSigner,
	}
	for name, signer := range signers {
		t.Run(name, func(t *testing.T) {
			c := newChain(address.ProtocolVersionHashBased)
			c.On("Submit", mock.Anything, mock.Anything).Return(testReceipt, nil)

			psc := issueDemoCheque(t, demoCheque())
			o := NewOrchestrator(DefaultConfig(), c, signer, nil, zaptest.NewLogger(t))

			flow, err := o.Run(context.Background(), &Request{Call: remarkCall, Cheque: psc})
			require.NoError(t, err)
			assert.Equal(t, StateSubmitted, flow.State())
			assert.NoError(t, flow.Err())
			assert.NotEmpty(t, flow.Id)
			assert.Equal(t, testReceipt, flow.Receipt)

			// who is the account of the demo key
			require.NotNil(t, flow.MetaCall)
			assert.Equal(t, tests.DemoHashBasedAccountIdHex, flow.MetaCall.Who.Hex())
			assert.Equal(t, tests.DemoHashBasedSS58, flow.Account.SS58)
			assert.Equal(t, tests.RemarkCallHex, hexutil.Encode(flow.MetaCall.CallData))

			// the signature recovers to the demo key
			pub, err := recovery.RecoverFromTypedDataSignature(flow.Digest, flow.MetaCall.Signature)
			require.NoError(t, err)
			assert.Equal(t, tests.DemoCompressedPublicKeyHex, pub.Hex())

			verifier, err := NewVerifier(eip712.ChainMetadata{Name: "Substrate", Version: "1"}, address.DefaultTransparentLayout(), address.DefaultSS58Prefix)
			require.NoError(t, err)
			verified, err := verifier.Verify(flow.MetaCall)
			require.NoError(t, err)
			assert.Equal(t, pub, verified)

			// exactly the payload built from the flow reached the chain
			c.AssertCalled(t, "Submit", mock.Anything, encodeMetaCall(t, flow.MetaCall))
			c.AssertNumberOfCalls(t, "Submit", 1)
		})
	}

	// the wallet was asked once to reveal its key and once to sign
	assert.Equal(t, 1, wallet.RequestCount("personal_sign"))
	assert.Equal(t, 1, wallet.RequestCount("eth_signTypedData_v4"))
}

func Test_Orchestrator_Unsponsored(t *testing.T) {
	c := newChain(address.ProtocolVersionHashBased)
	c.On("Submit", mock.Anything, mock.Anything).Return(testReceipt, nil)

	o := NewOrchestrator(nil, c, newLocalSigner(t), nil, zaptest.NewLogger(t))
	flow, err := o.Run(context.Background(), &Request{
		Call:  remarkCall,
		Nonce: types.Some(uint64(0)),
	})
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, flow.State())
	assert.Nil(t, flow.MetaCall.PreSignedCheque)
	assert.Equal(t, tests.DigestV1NoChequeHex, flow.Digest.Hex())

	c.AssertNotCalled(t, "AccountNonce", mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "BlockNumber", mock.Anything)
}

func Test_Orchestrator_Prepare(t *testing.T) {
	c := newChain(address.ProtocolVersionHashBased)
	signer := &stallingSigner{PrivateKeySigner: newLocalSigner(t)}

	o := NewOrchestrator(nil, c, signer, nil, zaptest.NewLogger(t))
	flow, err := o.Prepare(context.Background(), &Request{Call: remarkCall})
	require.NoError(t, err)

	assert.Equal(t, StateMessageBuilt, flow.State())
	assert.Equal(t, tests.DigestV1NoChequeHex, flow.Digest.Hex())
	require.NotNil(t, flow.MetaCall)
	assert.Equal(t, tests.DemoHashBasedAccountIdHex, flow.MetaCall.Who.Hex())
	assert.Equal(t, types.EvmSignature{}, flow.MetaCall.Signature)
	assert.Equal(t, int32(0), signer.requests.Load())
	c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func Test_Orchestrator_Cancellation(t *testing.T) {
	t.Run("cancelling while the signer waits", func(t *testing.T) {
		c := newChain(address.ProtocolVersionHashBased)
		signer := &stallingSigner{PrivateKeySigner: newLocalSigner(t)}
		o := NewOrchestrator(DefaultConfig(), c, signer, nil, zaptest.NewLogger(t))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			for signer.requests.Load() == 0 {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()
		}()

		flow, err := o.Run(ctx, &Request{Call: remarkCall, Cheque: issueDemoCheque(t, demoCheque())})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrCancelled)
		assert.Equal(t, StateCancelled, flow.State())
		assert.Nil(t, flow.MetaCall)
		c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("signer that ignores cancellation", func(t *testing.T) {
		c := newChain(address.ProtocolVersionHashBased)
		signer := &stallingSigner{
			PrivateKeySigner: newLocalSigner(t),
			ignoreCtx:        true,
			release:          make(chan struct{}),
		}
		defer close(signer.release)
		o := NewOrchestrator(DefaultConfig(), c, signer, nil, zaptest.NewLogger(t))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		flow, err := o.Run(ctx, &Request{Call: remarkCall})
		assert.ErrorIs(t, err, types.ErrCancelled)
		assert.Equal(t, StateCancelled, flow.State())
		c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("signer rejects", func(t *testing.T) {
		c := newChain(address.ProtocolVersionHashBased)
		o := NewOrchestrator(DefaultConfig(), c, &rejectingSigner{newLocalSigner(t)}, nil, zaptest.NewLogger(t))

		flow, err := o.Run(context.Background(), &Request{Call: remarkCall})
		assert.ErrorIs(t, err, types.ErrCancelled)
		assert.Equal(t, StateCancelled, flow.State())
		assert.ErrorIs(t, flow.Err(), types.ErrCancelled)
		c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("wallet user rejects the key request", func(t *testing.T) {
		c := newChain(address.ProtocolVersionHashBased)
		signer, wallet := newWalletSigner(t)
		wallet.SetReject(true)
		o := NewOrchestrator(DefaultConfig(), c, signer, nil, zaptest.NewLogger(t))

		flow, err := o.Run(context.Background(), &Request{Call: remarkCall})
		assert.ErrorIs(t, err, types.ErrCancelled)
		assert.Equal(t, StateCancelled, flow.State())
		assert.Nil(t, flow.Account)
		assert.Equal(t, 0, wallet.RequestCount("eth_signTypedData_v4"))
		c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}

func Test_Orchestrator_StrategyDivergence(t *testing.T) {
	resolve := func(version string) *Account {
		o := NewOrchestrator(DefaultConfig(), newChain(version), newLocalSigner(t), nil, zaptest.NewLogger(t))
		account, err := o.ResolveAccount(context.Background())
		require.NoError(t, err)
		return account
	}

	hashBased := resolve(address.ProtocolVersionHashBased)
	transparent := resolve(address.ProtocolVersionTransparent)

	assert.Equal(t, tests.DemoHashBasedAccountIdHex, hashBased.AccountId.Hex())
	assert.Equal(t, tests.DemoTransparentAccountIdHex, transparent.AccountId.Hex())
	assert.Equal(t, tests.DemoTransparentSS58, transparent.SS58)
	assert.NotEqual(t, hashBased.AccountId, transparent.AccountId)
	assert.Equal(t, hashBased.PublicKey, transparent.PublicKey)

	// a call signed for one version is rejected by a relayer on the other
	c := newChain(address.ProtocolVersionTransparent)
	c.On("Submit", mock.Anything, mock.Anything).Return(testReceipt, nil)
	flow, err := NewOrchestrator(DefaultConfig(), c, newLocalSigner(t), nil, zaptest.NewLogger(t)).
		Run(context.Background(), &Request{Call: remarkCall})
	require.NoError(t, err)

	verifier, err := NewVerifier(eip712.ChainMetadata{Name: "Substrate", Version: "1"}, address.DefaultTransparentLayout(), address.DefaultSS58Prefix)
	require.NoError(t, err)
	_, err = verifier.Verify(flow.MetaCall)
	assert.ErrorIs(t, err, types.ErrSignatureMismatch)
}

func Test_Orchestrator_UnsupportedVersion(t *testing.T) {
	c := newChain("3")
	o := NewOrchestrator(DefaultConfig(), c, newLocalSigner(t), nil, zaptest.NewLogger(t))

	flow, err := o.Run(context.Background(), &Request{Call: remarkCall})
	assert.ErrorIs(t, err, types.ErrUnsupportedProtocolVersion)
	assert.Equal(t, StateFailed, flow.State())
}

func Test_Orchestrator_ExpectedVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpectedVersion = address.ProtocolVersionTransparent

	o := NewOrchestrator(cfg, newChain(address.ProtocolVersionHashBased), newLocalSigner(t), nil, zaptest.NewLogger(t))
	_, err := o.ResolveAccount(context.Background())
	assert.ErrorIs(t, err, types.ErrUnsupportedProtocolVersion)

	o = NewOrchestrator(cfg, newChain(address.ProtocolVersionTransparent), newLocalSigner(t), nil, zaptest.NewLogger(t))
	account, err := o.ResolveAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tests.DemoTransparentAccountIdHex, account.AccountId.Hex())
}

func Test_Orchestrator_ResolveAccountForVersion(t *testing.T) {
	o := NewOrchestrator(nil, nil, newLocalSigner(t), nil, zaptest.NewLogger(t))

	account, err := o.ResolveAccountForVersion(context.Background(), address.ProtocolVersionHashBased)
	require.NoError(t, err)
	assert.Equal(t, tests.DemoHashBasedSS58, account.SS58)
	assert.Equal(t, tests.DemoEvmAddressHex, hexutil.Encode(account.EvmAddress.Bytes()))

	account, err = o.ResolveAccountForVersion(context.Background(), address.ProtocolVersionTransparent)
	require.NoError(t, err)
	assert.Equal(t, tests.DemoTransparentSS58, account.SS58)

	_, err = o.ResolveAccountForVersion(context.Background(), "3")
	assert.ErrorIs(t, err, types.ErrUnsupportedProtocolVersion)
}

func Test_Orchestrator_ChequeNotApplicable(t *testing.T) {
	other := cheque.New(1000, cheque.Balance(100), cheque.Balance(0)).WithOnlyCallHash(types.Hash{0x01})

	cases := []struct {
		name   string
		cheque *cheque.Cheque
		tip    *big.Int
	}{
		{"other call", other, nil},
		{"expired", cheque.New(5, cheque.Balance(1), cheque.Balance(0)), nil},
		{"tip above maximum", demoCheque(), big.NewInt(1)},
		{"sponsor balance too low", cheque.New(1000, cheque.Balance(1001), cheque.Balance(0)), nil},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			c := newChain(address.ProtocolVersionHashBased)
			signer := &stallingSigner{PrivateKeySigner: newLocalSigner(t)}
			o := NewOrchestrator(DefaultConfig(), c, signer, nil, zaptest.NewLogger(t))

			flow, err := o.Run(context.Background(), &Request{
				Call:   remarkCall,
				Tip:    tt.tip,
				Cheque: issueDemoCheque(t, tt.cheque),
			})
			assert.ErrorIs(t, err, types.ErrChequeNotApplicable)
			assert.Equal(t, StateFailed, flow.State())
			assert.Equal(t, int32(0), signer.requests.Load())
			c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func Test_Orchestrator_ForgedCheque(t *testing.T) {
	c := newChain(address.ProtocolVersionHashBased)
	o := NewOrchestrator(DefaultConfig(), c, newLocalSigner(t), nil, zaptest.NewLogger(t))

	psc := issueDemoCheque(t, demoCheque())
	psc.Cheque.Deadline = 2000

	flow, err := o.Run(context.Background(), &Request{Call: remarkCall, Cheque: psc})
	assert.ErrorIs(t, err, types.ErrSignatureMismatch)
	assert.Equal(t, StateFailed, flow.State())
}

func Test_Orchestrator_SignatureFromOtherKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := &wrongKeySigner{
		PrivateKeySigner: newLocalSigner(t),
		other:            typedDataSigner.NewPrivateKeySignerFromECDSA(key, zaptest.NewLogger(t)),
	}

	c := newChain(address.ProtocolVersionHashBased)
	o := NewOrchestrator(DefaultConfig(), c, signer, nil, zaptest.NewLogger(t))

	flow, err := o.Run(context.Background(), &Request{Call: remarkCall})
	assert.ErrorIs(t, err, types.ErrSignatureMismatch)
	assert.Equal(t, StateFailed, flow.State())
	c.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func Test_Orchestrator_SubmissionRejected(t *testing.T) {
	c := newChain(address.ProtocolVersionHashBased)
	c.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.Wrap(types.ErrSubmissionRejected, "bad proof"))

	o := NewOrchestrator(DefaultConfig(), c, newLocalSigner(t), nil, zaptest.NewLogger(t))
	flow, err := o.Run(context.Background(), &Request{Call: remarkCall})
	assert.ErrorIs(t, err, types.ErrSubmissionRejected)
	assert.Equal(t, StateFailed, flow.State())
	assert.NotNil(t, flow.MetaCall)
}

func Test_Orchestrator_ChequeStore(t *testing.T) {
	store := memory.NewMemoryPersistence()
	defer func() { _ = store.Close() }()

	c := newChain(address.ProtocolVersionHashBased)
	c.On("Submit", mock.Anything, mock.Anything).Return(testReceipt, nil)
	o := NewOrchestrator(DefaultConfig(), c, newLocalSigner(t), store, zaptest.NewLogger(t))

	psc := issueDemoCheque(t, demoCheque())
	_, err := o.Run(context.Background(), &Request{Call: remarkCall, Cheque: psc})
	require.NoError(t, err)

	key, err := cheque.ContentKey(psc)
	require.NoError(t, err)
	stored, err := store.GetCheque(key)
	require.NoError(t, err)
	require.NotNil(t, stored)

	// a later call reuses the cached cheque by key
	flow, err := o.Run(context.Background(), &Request{Call: remarkCall, ChequeKey: types.Some(key)})
	require.NoError(t, err)
	require.NotNil(t, flow.Cheque)
	assert.Equal(t, psc.Signer, flow.Cheque.Signer)

	flow, err = o.Run(context.Background(), &Request{Call: remarkCall, ChequeKey: types.Some(types.Hash{0x01})})
	assert.ErrorIs(t, err, types.ErrChequeNotApplicable)
	assert.Equal(t, StateFailed, flow.State())
}

func Test_Orchestrator_NilRequest(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), newChain("1"), newLocalSigner(t), nil, zaptest.NewLogger(t))
	flow, err := o.Run(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, flow.State())
}

func Test_StateIsTerminal(t *testing.T) {
	for _, s := range []State{StateSubmitted, StateCancelled, StateFailed} {
		assert.True(t, s.IsTerminal(), s.String())
	}
	for _, s := range []State{StateIdle, StateAddressResolved, StateChequeReady, StateMessageBuilt, StateSigned} {
		assert.False(t, s.IsTerminal(), s.String())
	}
}
