package metaCall

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/sponsor"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/typedDataSigner"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultAddressMessage is signed to reveal the wallet's public key when the
// signer can't hand it out directly
const DefaultAddressMessage = "Allows to access the pubkey address."

type Config struct {
	SS58Prefix        uint16
	TransparentLayout address.TransparentLayout
	AddressMessage    string
	// ExpectedVersion pins the protocol version; empty accepts any supported one
	ExpectedVersion string
}

func DefaultConfig() *Config {
	return &Config{
		SS58Prefix:        address.DefaultSS58Prefix,
		TransparentLayout: address.DefaultTransparentLayout(),
		AddressMessage:    DefaultAddressMessage,
	}
}

// Account is the chain identity behind an externally owned key
type Account struct {
	EvmAddress common.Address  `json:"evmAddress"`
	PublicKey  types.PublicKey `json:"publicKey"`
	AccountId  types.AccountId `json:"accountId"`
	SS58       string          `json:"ss58"`
	Strategy   string          `json:"strategy"`
}

// Request describes one meta-call
type Request struct {
	Call chain.CallDescriptor
	// Nonce is read from the chain when absent
	Nonce types.Option[uint64]
	// Tip is nil for no tip
	Tip *big.Int
	// Cheque sponsors the call. When nil, ChequeKey is looked up in the
	// cheque store instead; with neither the caller pays.
	Cheque    *cheque.PreSignedCheque
	ChequeKey types.Option[types.Hash]
}

// Flow is the record of a single meta-call. It is only written by the
// orchestrator goroutine running it.
type Flow struct {
	Id string

	mu    sync.RWMutex
	state State
	err   error

	Account   *Account
	Cheque    *cheque.PreSignedCheque
	CallData  []byte
	TypedData apitypes.TypedData
	Digest    types.Hash
	MetaCall  *MetaCall
	Receipt   *chain.Receipt
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Err is the error that ended a Cancelled or Failed flow
func (f *Flow) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

func (f *Flow) setState(s State, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
	f.err = err
}

// Orchestrator drives meta-calls from an externally owned key to the chain
type Orchestrator struct {
	config *Config
	chain  chain.IChainClient
	signer typedDataSigner.ITypedDataSigner
	// cheques is optional
	cheques persistence.IChequeStore
	logger  *zap.Logger
}

func NewOrchestrator(
	cfg *Config,
	chainClient chain.IChainClient,
	signer typedDataSigner.ITypedDataSigner,
	cheques persistence.IChequeStore,
	logger *zap.Logger,
) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AddressMessage == "" {
		cfg.AddressMessage = DefaultAddressMessage
	}
	return &Orchestrator{
		config:  cfg,
		chain:   chainClient,
		signer:  signer,
		cheques: cheques,
		logger:  logger,
	}
}

// Run takes req through every step up to submission. The returned flow is
// never nil; on error its state is Cancelled or Failed. Cancelling ctx while
// the signer is waiting for approval ends the flow as Cancelled with nothing
// sent to the chain.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Flow, error) {
	flow, deriver, err := o.prepare(ctx, req)
	if err != nil {
		return flow, err
	}
	account := flow.Account
	mc := flow.MetaCall
	flow.MetaCall = nil

	o.logger.Sugar().Infow("Waiting for typed data signature", "flowId", flow.Id, "evmAddress", account.EvmAddress.Hex())
	sig, err := awaitSignature(ctx, func(ctx context.Context) (types.EvmSignature, error) {
		return o.signer.SignTypedData(ctx, flow.TypedData)
	})
	if err != nil {
		return flow, o.fail(flow, err)
	}
	pub, err := recovery.RecoverFromTypedDataSignature(flow.Digest, sig)
	if err != nil {
		return flow, o.fail(flow, err)
	}
	if err := recovery.VerifyAccount(pub, deriver, account.AccountId); err != nil {
		return flow, o.fail(flow, err)
	}
	mc.Signature = sig
	flow.MetaCall = mc
	o.advance(flow, StateSigned)

	descriptor, err := mc.Descriptor()
	if err != nil {
		return flow, o.fail(flow, err)
	}
	payload, err := o.chain.EncodeCall(ctx, descriptor)
	if err != nil {
		return flow, o.fail(flow, err)
	}
	receipt, err := o.chain.Submit(ctx, payload)
	if err != nil {
		// whatever happened at this point the signing prompt is over, so
		// this is never reported as a cancellation
		return flow, o.failWith(flow, StateFailed, err)
	}
	flow.Receipt = receipt
	o.advance(flow, StateSubmitted, "extrinsicHash", receipt.ExtrinsicHash.Hex())

	return flow, nil
}

// Prepare runs req up to the typed data without asking the signer for a
// signature. The returned flow stops in MessageBuilt, and its MetaCall holds
// everything except the signature.
func (o *Orchestrator) Prepare(ctx context.Context, req *Request) (*Flow, error) {
	flow, _, err := o.prepare(ctx, req)
	return flow, err
}

func (o *Orchestrator) prepare(ctx context.Context, req *Request) (*Flow, *address.Deriver, error) {
	flow := &Flow{Id: uuid.New().String(), state: StateIdle}
	if req == nil {
		return flow, nil, o.fail(flow, fmt.Errorf("request cannot be nil"))
	}

	domain, deriver, err := o.loadChainContext(ctx)
	if err != nil {
		return flow, nil, o.fail(flow, err)
	}

	account, err := o.resolveAccount(ctx, deriver)
	if err != nil {
		return flow, nil, o.fail(flow, err)
	}
	flow.Account = account
	o.advance(flow, StateAddressResolved, "who", account.SS58, "strategy", account.Strategy)

	psc, err := o.loadCheque(req)
	if err != nil {
		return flow, nil, o.fail(flow, err)
	}
	flow.Cheque = psc
	o.advance(flow, StateChequeReady, "sponsored", psc != nil)

	callData, err := o.chain.EncodeCall(ctx, req.Call)
	if err != nil {
		return flow, nil, o.fail(flow, err)
	}
	flow.CallData = callData

	nonce, ok := req.Nonce.Unwrap()
	if !ok {
		if nonce, err = o.chain.AccountNonce(ctx, account.AccountId); err != nil {
			return flow, nil, o.fail(flow, err)
		}
	}
	if psc != nil {
		if err := o.checkCheque(ctx, psc, account.AccountId, nonce, callData, req.Tip); err != nil {
			return flow, nil, o.fail(flow, err)
		}
	}

	mc := &MetaCall{
		Who:             account.AccountId,
		CallData:        callData,
		Nonce:           nonce,
		Tip:             req.Tip,
		PreSignedCheque: psc,
	}
	message, err := mc.SubstrateCall(o.config.SS58Prefix)
	if err != nil {
		return flow, nil, o.fail(flow, err)
	}
	flow.TypedData = eip712.BuildTypedData(domain, message)
	if flow.Digest, err = eip712.Hash(flow.TypedData); err != nil {
		return flow, nil, o.fail(flow, err)
	}
	o.advance(flow, StateMessageBuilt, "digest", flow.Digest.Hex(), "nonce", nonce)

	flow.MetaCall = mc

	return flow, deriver, nil
}

// ResolveAccount returns the chain account of the connected signer
func (o *Orchestrator) ResolveAccount(ctx context.Context) (*Account, error) {
	_, deriver, err := o.loadChainContext(ctx)
	if err != nil {
		return nil, err
	}
	return o.resolveAccount(ctx, deriver)
}

// ResolveAccountForVersion resolves the signer's account under a known
// protocol version without contacting the chain
func (o *Orchestrator) ResolveAccountForVersion(ctx context.Context, version string) (*Account, error) {
	deriver, err := address.NewDeriverForVersion(version, o.config.TransparentLayout)
	if err != nil {
		return nil, err
	}
	return o.resolveAccount(ctx, deriver)
}

// loadChainContext reads the typed-data constants of the chain module and
// picks the address strategy that goes with its protocol version
func (o *Orchestrator) loadChainContext(ctx context.Context) (apitypes.TypedDataDomain, *address.Deriver, error) {
	meta, err := o.chain.ChainMetadata(ctx)
	if err != nil {
		return apitypes.TypedDataDomain{}, nil, err
	}
	if o.config.ExpectedVersion != "" && o.config.ExpectedVersion != meta.Version {
		return apitypes.TypedDataDomain{}, nil, errors.Wrapf(types.ErrUnsupportedProtocolVersion,
			"chain runs version %q, configured for %q", meta.Version, o.config.ExpectedVersion)
	}
	domain, err := eip712.BuildDomain(meta)
	if err != nil {
		return apitypes.TypedDataDomain{}, nil, err
	}
	deriver, err := address.NewDeriverForVersion(meta.Version, o.config.TransparentLayout)
	if err != nil {
		return apitypes.TypedDataDomain{}, nil, err
	}
	return domain, deriver, nil
}

func (o *Orchestrator) resolveAccount(ctx context.Context, deriver *address.Deriver) (*Account, error) {
	evmAddress, err := o.signer.GetPublicAddress(ctx)
	if err != nil {
		return nil, classifySignerError(ctx, err)
	}

	var pub types.PublicKey
	if provider, ok := o.signer.(typedDataSigner.IPublicKeyProvider); ok {
		if pub, err = provider.GetPublicKey(ctx); err != nil {
			return nil, err
		}
	} else {
		message := []byte(o.config.AddressMessage)
		sig, err := awaitSignature(ctx, func(ctx context.Context) (types.EvmSignature, error) {
			return o.signer.SignPersonalMessage(ctx, message)
		})
		if err != nil {
			return nil, err
		}
		if pub, err = recovery.RecoverFromPersonalMessage(message, sig); err != nil {
			return nil, err
		}
	}
	if err := recovery.VerifyEvmAddress(pub, evmAddress); err != nil {
		return nil, err
	}

	who, err := deriver.AccountId(pub)
	if err != nil {
		return nil, err
	}
	ss58, err := address.EncodeSS58(who, o.config.SS58Prefix)
	if err != nil {
		return nil, err
	}
	return &Account{
		EvmAddress: evmAddress,
		PublicKey:  pub,
		AccountId:  who,
		SS58:       ss58,
		Strategy:   deriver.Strategy().String(),
	}, nil
}

func (o *Orchestrator) loadCheque(req *Request) (*cheque.PreSignedCheque, error) {
	psc := req.Cheque
	if psc == nil {
		key, ok := req.ChequeKey.Unwrap()
		if !ok {
			return nil, nil
		}
		if o.cheques == nil {
			return nil, fmt.Errorf("cheque %s requested but no cheque store is configured", key.Hex())
		}
		stored, err := o.cheques.GetCheque(key)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, errors.Wrapf(types.ErrChequeNotApplicable, "cheque %s not found", key.Hex())
		}
		psc = stored.Cheque
	}

	if err := sponsor.Verify(psc); err != nil {
		return nil, err
	}
	if req.Cheque != nil && o.cheques != nil {
		if _, err := o.cheques.PutCheque(psc); err != nil {
			o.logger.Sugar().Warnw("Failed to cache cheque", "error", err)
		}
	}
	return psc, nil
}

// checkCheque mirrors the chain module's pre-dispatch checks so an unusable
// cheque fails before the user is asked to sign
func (o *Orchestrator) checkCheque(
	ctx context.Context,
	psc *cheque.PreSignedCheque,
	who types.AccountId,
	nonce uint64,
	callData []byte,
	tip *big.Int,
) error {
	blockNumber, err := o.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}
	balance, err := o.chain.FreeBalance(ctx, psc.Signer)
	if err != nil {
		return err
	}
	return psc.Cheque.CheckApplicable(cheque.Usage{
		BlockNumber:    blockNumber,
		Who:            who,
		AccountNonce:   nonce,
		CallHash:       cheque.CallHash(callData),
		Tip:            tip,
		SponsorBalance: balance,
	})
}

func (o *Orchestrator) advance(flow *Flow, state State, keysAndValues ...interface{}) {
	flow.setState(state, nil)
	fields := append([]interface{}{"flowId", flow.Id, "state", state.String()}, keysAndValues...)
	o.logger.Sugar().Debugw("Meta-call advanced", fields...)
}

// fail ends the flow as Cancelled when err is a cancellation, otherwise as Failed
func (o *Orchestrator) fail(flow *Flow, err error) error {
	state := StateFailed
	if errors.Is(err, types.ErrCancelled) {
		state = StateCancelled
	}
	return o.failWith(flow, state, err)
}

func (o *Orchestrator) failWith(flow *Flow, state State, err error) error {
	from := flow.State()
	flow.setState(state, err)
	if state == StateCancelled {
		o.logger.Sugar().Infow("Meta-call cancelled", "flowId", flow.Id, "from", from.String(), "error", err)
	} else {
		o.logger.Sugar().Errorw("Meta-call failed", "flowId", flow.Id, "from", from.String(), "error", err)
	}
	return err
}

type signResult struct {
	sig types.EvmSignature
	err error
}

// awaitSignature runs sign in its own goroutine so that cancelling ctx returns
// immediately even if the signer ignores ctx
func awaitSignature(ctx context.Context, sign func(ctx context.Context) (types.EvmSignature, error)) (types.EvmSignature, error) {
	done := make(chan signResult, 1)
	go func() {
		sig, err := sign(ctx)
		done <- signResult{sig: sig, err: err}
	}()

	select {
	case <-ctx.Done():
		return types.EvmSignature{}, errors.Wrapf(types.ErrCancelled, "signing aborted: %v", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return types.EvmSignature{}, classifySignerError(ctx, res.err)
		}
		return res.sig, nil
	}
}

func classifySignerError(ctx context.Context, err error) error {
	if errors.Is(err, types.ErrCancelled) {
		return err
	}
	if ctx.Err() != nil {
		return errors.Wrapf(types.ErrCancelled, "%v", err)
	}
	return err
}
