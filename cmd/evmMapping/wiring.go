package main

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	awsConfig "github.com/Layr-Labs/evm-account-mapping-go/internal/aws"
	"github.com/Layr-Labs/evm-account-mapping-go/internal/keyGenerator/awsKms"
	"github.com/Layr-Labs/evm-account-mapping-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain/substrate"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/config"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/logger"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/metaCall"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence/badger"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence/memory"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/persistence/redis"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/sponsor"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/typedDataSigner"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const localSponsorKeyId = "sponsor"

// configFromContext reads the global flags into a validated config
func configFromContext(c *cli.Context) (*config.Config, error) {
	if prefix := c.Uint("ss58-prefix"); prefix > math.MaxUint16 {
		return nil, fmt.Errorf("ss58 prefix %d out of range", prefix)
	}
	cfg := &config.Config{
		NodeUrl:                c.String("node-url"),
		SS58Prefix:             uint16(c.Uint("ss58-prefix")),
		ProtocolVersion:        config.ProtocolVersion(c.String("protocol-version")),
		TransparentTag:         c.String("transparent-tag"),
		TransparentTagPosition: c.String("transparent-tag-position"),
		RequestsPerSecond:      c.Float64("requests-per-second"),
		Debug:                  c.Bool("debug"),
		Signer: config.SignerConfig{
			PrivateKey:      c.String("private-key"),
			WalletUrl:       c.String("wallet-url"),
			WalletAccount:   c.String("wallet-account"),
			TypedDataMethod: c.String("typed-data-method"),
		},
		Sponsor: config.SponsorConfig{
			SecretUri:   c.String("sponsor-secret-uri"),
			KmsKeyId:    c.String("sponsor-kms-key-id"),
			PrivateKey:  c.String("sponsor-private-key"),
			Environment: c.String("sponsor-environment"),
			AwsRegion:   c.String("aws-region"),
		},
		Persistence: config.PersistenceConfig{
			Type:           config.PersistenceType(c.String("persistence-type")),
			BadgerPath:     c.String("badger-path"),
			RedisAddress:   c.String("redis-address"),
			RedisPassword:  c.String("redis-password"),
			RedisDB:        c.Int("redis-db"),
			RedisKeyPrefix: c.String("redis-key-prefix"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// env bundles what every command needs
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := configFromContext(c)
	if err != nil {
		return nil, err
	}
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &env{cfg: cfg, logger: l}, nil
}

func (e *env) chainClient() (*substrate.Client, error) {
	return substrate.NewClient(&substrate.Config{
		Url:               e.cfg.NodeUrl,
		SS58Prefix:        e.cfg.SS58Prefix,
		RequestsPerSecond: e.cfg.RequestsPerSecond,
	}, e.logger)
}

func (e *env) typedDataSigner(ctx context.Context) (typedDataSigner.ITypedDataSigner, error) {
	return typedDataSigner.NewTypedDataSigner(ctx, &typedDataSigner.SignerConfig{
		PrivateKey:      e.cfg.Signer.PrivateKey,
		WalletUrl:       e.cfg.Signer.WalletUrl,
		WalletAccount:   e.cfg.Signer.WalletAccount,
		TypedDataMethod: e.cfg.Signer.TypedDataMethod,
	}, e.logger)
}

func (e *env) chequeStore() (persistence.IChequeStore, error) {
	switch e.cfg.Persistence.Type {
	case config.PersistenceTypeBadger:
		return badger.NewBadgerPersistence(e.cfg.Persistence.BadgerPath, e.logger)
	case config.PersistenceTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   e.cfg.Persistence.RedisAddress,
			Password:  e.cfg.Persistence.RedisPassword,
			DB:        e.cfg.Persistence.RedisDB,
			KeyPrefix: e.cfg.Persistence.RedisKeyPrefix,
		}, e.logger)
	default:
		return memory.NewMemoryPersistence(), nil
	}
}

// sponsorSigner loads the configured sponsor key. secp256k1 keys live in a
// key generator, either AWS KMS or an in-process one for raw private keys.
func (e *env) sponsorSigner(ctx context.Context) (sponsor.ISigner, error) {
	s := e.cfg.Sponsor
	switch {
	case s.SecretUri != "":
		return sponsor.NewSr25519Signer(s.SecretUri, e.cfg.SS58Prefix)
	case s.KmsKeyId != "":
		keys, err := e.kmsKeyGenerator(ctx)
		if err != nil {
			return nil, err
		}
		return sponsor.NewEcdsaSigner(ctx, keys, s.KmsKeyId)
	case s.PrivateKey != "":
		keys := localKeyGenerator.NewLocalKeyGenerator(e.logger)
		if err := keys.LoadPrivateKeyFromHex(localSponsorKeyId, s.PrivateKey, localSponsorKeyId, localSponsorKeyId); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyMaterial, err)
		}
		return sponsor.NewEcdsaSigner(ctx, keys, localSponsorKeyId)
	default:
		return nil, fmt.Errorf("no sponsor key configured, set one of --sponsor-secret-uri, --sponsor-kms-key-id or --sponsor-private-key")
	}
}

func (e *env) kmsKeyGenerator(ctx context.Context) (*awsKms.AWSKMSKeyGenerator, error) {
	if e.cfg.Sponsor.Environment == "" {
		return nil, fmt.Errorf("--sponsor-environment is required for KMS sponsor keys")
	}
	cfg, err := awsConfig.LoadAWSConfig(ctx, e.cfg.Sponsor.AwsRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if arn, err := awsConfig.GetCallerIdentity(ctx, cfg); err != nil {
		e.logger.Sugar().Warnw("Failed to get AWS caller identity", "error", err)
	} else {
		e.logger.Sugar().Infow("Using AWS identity", "arn", arn)
	}
	return awsKms.NewAWSKMSKeyGenerator(cfg, e.cfg.Sponsor.Environment, e.logger), nil
}

func (e *env) orchestratorConfig() (*metaCall.Config, error) {
	layout, err := e.cfg.TransparentLayout()
	if err != nil {
		return nil, err
	}
	return &metaCall.Config{
		SS58Prefix:        e.cfg.SS58Prefix,
		TransparentLayout: layout,
		AddressMessage:    metaCall.DefaultAddressMessage,
		ExpectedVersion:   e.cfg.ProtocolVersion.String(),
	}, nil
}

// parseAccount accepts an SS58 address or a 0x account id
func parseAccount(s string) (types.AccountId, error) {
	if strings.HasPrefix(s, "0x") {
		return types.AccountIdFromHex(s)
	}
	id, _, err := address.DecodeSS58(s)
	return id, err
}

func parseHash(s string) (types.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return types.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return types.HashFromBytes(b)
}

func parseBalance(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

// callFromContext builds the runtime call named by --remark or --call/--arg
func callFromContext(c *cli.Context) (chain.CallDescriptor, error) {
	remark := c.String("remark")
	name := c.String("call")
	switch {
	case remark != "" && name != "":
		return chain.CallDescriptor{}, fmt.Errorf("--remark and --call are mutually exclusive")
	case remark != "":
		return chain.CallDescriptor{Name: chain.RemarkWithEventName, Args: []interface{}{[]byte(remark)}}, nil
	case name != "":
		if !strings.Contains(name, ".") {
			return chain.CallDescriptor{}, fmt.Errorf("call must be Module.function, got %q", name)
		}
		var args []interface{}
		for i, raw := range c.StringSlice("arg") {
			b, err := hexutil.Decode(raw)
			if err != nil {
				return chain.CallDescriptor{}, fmt.Errorf("argument %d: %w", i, err)
			}
			// already SCALE encoded, written as is
			args = append(args, gsrpcTypes.Data(b))
		}
		return chain.CallDescriptor{Name: name, Args: args}, nil
	default:
		return chain.CallDescriptor{}, fmt.Errorf("one of --remark or --call is required")
	}
}

// requestFromContext reads the call flags into a meta-call request
func requestFromContext(c *cli.Context) (*metaCall.Request, error) {
	call, err := callFromContext(c)
	if err != nil {
		return nil, err
	}
	req := &metaCall.Request{Call: call}

	if c.IsSet("nonce") {
		req.Nonce = types.Some(c.Uint64("nonce"))
	}
	if req.Tip, err = parseBalance("tip", c.String("tip")); err != nil {
		return nil, err
	}
	if raw := c.String("cheque"); raw != "" {
		psc, err := decodeSignedChequeHex(raw)
		if err != nil {
			return nil, err
		}
		req.Cheque = psc
	}
	if raw := c.String("cheque-key"); raw != "" {
		if req.Cheque != nil {
			return nil, fmt.Errorf("--cheque and --cheque-key are mutually exclusive")
		}
		key, err := parseHash(raw)
		if err != nil {
			return nil, err
		}
		req.ChequeKey = types.Some(key)
	}
	return req, nil
}
