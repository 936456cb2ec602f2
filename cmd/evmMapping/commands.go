package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/metaCall"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/sponsor"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

// signalContext is cancelled on SIGINT/SIGTERM so a pending wallet prompt
// ends the flow as cancelled
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func decodeSignedChequeHex(s string) (*cheque.PreSignedCheque, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cheque hex: %w", err)
	}
	return cheque.DecodeSignedCheque(b)
}

func addressCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	signer, err := e.typedDataSigner(ctx)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	oCfg, err := e.orchestratorConfig()
	if err != nil {
		return err
	}

	var account *metaCall.Account
	if e.cfg.ProtocolVersion != "" {
		account, err = metaCall.NewOrchestrator(oCfg, nil, signer, nil, e.logger).
			ResolveAccountForVersion(ctx, e.cfg.ProtocolVersion.String())
	} else {
		client, cErr := e.chainClient()
		if cErr != nil {
			return cErr
		}
		defer client.Close()
		account, err = metaCall.NewOrchestrator(oCfg, client, signer, nil, e.logger).ResolveAccount(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve account: %w", err)
	}
	return printJSON(account)
}

func recoverCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	sig, err := types.EvmSignatureFromHex(c.String("signature"))
	if err != nil {
		return err
	}

	var pub types.PublicKey
	switch {
	case c.String("digest") != "" && c.String("message") != "":
		return fmt.Errorf("--digest and --message are mutually exclusive")
	case c.String("digest") != "":
		digest, err := parseHash(c.String("digest"))
		if err != nil {
			return err
		}
		pub, err = recovery.RecoverFromTypedDataSignature(digest, sig)
		if err != nil {
			return err
		}
	case c.String("message") != "":
		pub, err = recovery.RecoverFromPersonalMessage([]byte(c.String("message")), sig)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --digest or --message is required")
	}

	layout, err := e.cfg.TransparentLayout()
	if err != nil {
		return err
	}
	evmAddress, err := address.EvmAddress(pub)
	if err != nil {
		return err
	}
	out := map[string]interface{}{
		"publicKey":  pub.Hex(),
		"evmAddress": evmAddress.Hex(),
	}
	for _, version := range address.SupportedVersions() {
		deriver, err := address.NewDeriverForVersion(version, layout)
		if err != nil {
			return err
		}
		id, err := deriver.AccountId(pub)
		if err != nil {
			return err
		}
		ss58, err := address.EncodeSS58(id, e.cfg.SS58Prefix)
		if err != nil {
			return err
		}
		out[deriver.Strategy().String()] = map[string]string{
			"accountId": id.Hex(),
			"ss58":      ss58,
		}
	}
	return printJSON(out)
}

// runFlow wires a chain client, signer and cheque store around one request
func runFlow(c *cli.Context, submit bool) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	req, err := requestFromContext(c)
	if err != nil {
		return err
	}
	client, err := e.chainClient()
	if err != nil {
		return err
	}
	defer client.Close()

	signer, err := e.typedDataSigner(ctx)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	store, err := e.chequeStore()
	if err != nil {
		return fmt.Errorf("failed to open cheque store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			e.logger.Sugar().Warnw("Failed to close cheque store", "error", err)
		}
	}()

	oCfg, err := e.orchestratorConfig()
	if err != nil {
		return err
	}
	o := metaCall.NewOrchestrator(oCfg, client, signer, store, e.logger)

	if !submit {
		flow, err := o.Prepare(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"flowId":    flow.Id,
			"who":       flow.Account.SS58,
			"callData":  hexutil.Encode(flow.CallData),
			"digest":    flow.Digest.Hex(),
			"typedData": flow.TypedData,
		})
	}

	flow, err := o.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("meta-call %s ended in state %s: %w", flow.Id, flow.State(), err)
	}
	fmt.Printf("✅ Meta-call submitted: %s\n", flow.Receipt.ExtrinsicHash.Hex())
	return printJSON(map[string]interface{}{
		"flowId":        flow.Id,
		"who":           flow.Account.SS58,
		"nonce":         flow.MetaCall.Nonce,
		"signature":     flow.MetaCall.Signature.Hex(),
		"extrinsicHash": flow.Receipt.ExtrinsicHash.Hex(),
	})
}

func typedDataCommand(c *cli.Context) error {
	return runFlow(c, false)
}

func metaCallCommand(c *cli.Context) error {
	return runFlow(c, true)
}

func chequeSignCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	minBalance, err := parseBalance("min-balance", c.String("min-balance"))
	if err != nil {
		return err
	}
	maxTip, err := parseBalance("max-tip", c.String("max-tip"))
	if err != nil {
		return err
	}
	if minBalance == nil {
		minBalance = new(big.Int)
	}
	if maxTip == nil {
		maxTip = new(big.Int)
	}
	deadline := c.Uint("deadline")
	if uint64(deadline) > uint64(^uint32(0)) {
		return fmt.Errorf("deadline %d out of range", deadline)
	}

	chq := cheque.New(uint32(deadline), minBalance, maxTip)
	if raw := c.String("only-account"); raw != "" {
		id, err := parseAccount(raw)
		if err != nil {
			return err
		}
		chq = chq.WithOnlyAccount(id)
	}
	if c.IsSet("only-nonce") {
		chq = chq.WithOnlyAccountNonce(c.Uint64("only-nonce"))
	}
	if raw := c.String("only-call"); raw != "" {
		call, err := hexutil.Decode(raw)
		if err != nil {
			return fmt.Errorf("invalid call hex: %w", err)
		}
		chq = chq.WithOnlyCallHash(cheque.CallHash(call))
	}

	signer, err := e.sponsorSigner(ctx)
	if err != nil {
		return err
	}
	psc, err := sponsor.NewIssuer(signer, e.logger).Issue(ctx, chq)
	if err != nil {
		return err
	}
	encoded, err := psc.Hex()
	if err != nil {
		return err
	}
	key, err := cheque.ContentKey(psc)
	if err != nil {
		return err
	}

	if c.Bool("store") {
		if err := storeCheque(e, psc); err != nil {
			return err
		}
	}
	return printJSON(map[string]interface{}{
		"cheque": encoded,
		"key":    key.Hex(),
		"signer": psc.Signer.Hex(),
		"scheme": psc.Signature.Scheme.String(),
	})
}

func storeCheque(e *env, psc *cheque.PreSignedCheque) error {
	store, err := e.chequeStore()
	if err != nil {
		return fmt.Errorf("failed to open cheque store: %w", err)
	}
	defer store.Close()

	key, err := store.PutCheque(psc)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Cheque stored under %s\n", key.Hex())
	return nil
}

func chequeStoreCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	psc, err := decodeSignedChequeHex(c.String("cheque"))
	if err != nil {
		return err
	}
	if err := sponsor.Verify(psc); err != nil {
		return err
	}
	return storeCheque(e, psc)
}

func chequeListCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	store, err := e.chequeStore()
	if err != nil {
		return fmt.Errorf("failed to open cheque store: %w", err)
	}
	defer store.Close()

	var cheques []*persistence.StoredCheque
	if raw := c.String("signer"); raw != "" {
		id, err := parseAccount(raw)
		if err != nil {
			return err
		}
		cheques, err = store.ListChequesBySigner(id)
		if err != nil {
			return err
		}
	} else if cheques, err = store.ListCheques(); err != nil {
		return err
	}
	persistence.SortByDeadline(cheques)
	return printJSON(cheques)
}

func chequePruneCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	var block uint32
	if c.IsSet("block") {
		if uint64(c.Uint("block")) > uint64(^uint32(0)) {
			return fmt.Errorf("block %d out of range", c.Uint("block"))
		}
		block = uint32(c.Uint("block"))
	} else {
		client, err := e.chainClient()
		if err != nil {
			return err
		}
		defer client.Close()
		if block, err = client.BlockNumber(ctx); err != nil {
			return err
		}
	}

	store, err := e.chequeStore()
	if err != nil {
		return fmt.Errorf("failed to open cheque store: %w", err)
	}
	defer store.Close()

	removed, err := store.PruneExpired(block)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Pruned %d cheques expired before block %d\n", removed, block)
	return nil
}

func sponsorCreateKeyCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	keys, err := e.kmsKeyGenerator(ctx)
	if err != nil {
		return err
	}
	name := c.String("name")
	key, err := keys.GenerateECDSAKey(ctx, name, name)
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	signer, err := sponsor.NewEcdsaSigner(ctx, keys, key.KeyId)
	if err != nil {
		return err
	}
	return printSponsor(e, signer, map[string]interface{}{"keyId": key.KeyId})
}

func sponsorInfoCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	signer, err := e.sponsorSigner(ctx)
	if err != nil {
		return err
	}
	return printSponsor(e, signer, map[string]interface{}{})
}

func printSponsor(e *env, signer sponsor.ISigner, out map[string]interface{}) error {
	id := signer.AccountId()
	ss58, err := address.EncodeSS58(id, e.cfg.SS58Prefix)
	if err != nil {
		return err
	}
	out["scheme"] = signer.Scheme().String()
	out["accountId"] = id.Hex()
	out["ss58"] = ss58
	return printJSON(out)
}
