package substrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/transport"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/ethereum/go-ethereum/common/hexutil"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const unsignedExtrinsicVersion byte = 4

type Config struct {
	Url               string
	SS58Prefix        uint16
	RetryConfig       transport.RetryConfig
	RequestsPerSecond float64
}

// Client talks to a Substrate node over its JSON-RPC interface
type Client struct {
	config *Config
	caller *transport.Caller
	logger *zap.Logger

	mu       sync.Mutex
	api      *gsrpc.SubstrateAPI
	metadata *gsrpcTypes.Metadata
}

var _ chain.IChainClient = (*Client)(nil)

func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil || cfg.Url == "" {
		return nil, fmt.Errorf("node url cannot be empty")
	}
	retry := cfg.RetryConfig
	if retry.MaxAttempts == 0 {
		retry = transport.DefaultRetryConfig
	}
	return &Client{
		config: cfg,
		caller: transport.NewCaller(retry, cfg.RequestsPerSecond, logger),
		logger: logger,
	}, nil
}

// connect dials the node and loads runtime metadata once
// TODO: reload metadata after a runtime upgrade instead of caching it for the client's lifetime
func (c *Client) connect(ctx context.Context) (*gsrpc.SubstrateAPI, *gsrpcTypes.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil && c.metadata != nil {
		return c.api, c.metadata, nil
	}

	err := c.caller.Do(ctx, "connect", func(ctx context.Context) error {
		api, err := gsrpc.NewSubstrateAPI(c.config.Url)
		if err != nil {
			return err
		}
		meta, err := api.RPC.State.GetMetadataLatest()
		if err != nil {
			api.Client.Close()
			return err
		}
		c.api = api
		c.metadata = meta
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", c.config.Url, err)
	}

	c.logger.Sugar().Infow("Connected to substrate node", "url", c.config.Url)
	return c.api, c.metadata, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		c.api.Client.Close()
		c.api = nil
		c.metadata = nil
	}
}

func (c *Client) ChainMetadata(ctx context.Context) (eip712.ChainMetadata, error) {
	_, meta, err := c.connect(ctx)
	if err != nil {
		return eip712.ChainMetadata{}, err
	}

	rawName, err := meta.FindConstantValue(chain.MappingModuleName, chain.Eip712NameConstant)
	if err != nil {
		return eip712.ChainMetadata{}, fmt.Errorf("failed to read %s constant: %w", chain.Eip712NameConstant, err)
	}
	rawVersion, err := meta.FindConstantValue(chain.MappingModuleName, chain.Eip712VersionConstant)
	if err != nil {
		return eip712.ChainMetadata{}, fmt.Errorf("failed to read %s constant: %w", chain.Eip712VersionConstant, err)
	}
	return DecodeChainMetadata(rawName, rawVersion)
}

// DecodeChainMetadata decodes the SCALE encoded Vec<u8> name and version constants
func DecodeChainMetadata(rawName, rawVersion []byte) (eip712.ChainMetadata, error) {
	var name, version gsrpcTypes.Bytes
	if err := codec.Decode(rawName, &name); err != nil {
		return eip712.ChainMetadata{}, fmt.Errorf("failed to decode typed data name: %w", err)
	}
	if err := codec.Decode(rawVersion, &version); err != nil {
		return eip712.ChainMetadata{}, fmt.Errorf("failed to decode typed data version: %w", err)
	}
	return eip712.ChainMetadata{Name: string(name), Version: string(version)}, nil
}

func (c *Client) EncodeCall(ctx context.Context, call chain.CallDescriptor) ([]byte, error) {
	_, meta, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := gsrpcTypes.NewCall(meta, call.Name, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call %s: %w", call.Name, err)
	}
	return codec.Encode(encoded)
}

// EncodeUnsignedExtrinsic wraps call bytes as a length prefixed unsigned extrinsic
func EncodeUnsignedExtrinsic(callBytes []byte) ([]byte, error) {
	if len(callBytes) < 2 {
		return nil, fmt.Errorf("call must start with a two byte call index, got %d bytes", len(callBytes))
	}
	body := append([]byte{unsignedExtrinsicVersion}, callBytes...)

	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.Encode(gsrpcTypes.NewUCompactFromUInt(uint64(len(body)))); err != nil {
		return nil, err
	}
	if err := enc.Write(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type rpcCodedError interface {
	ErrorCode() int
}

func (c *Client) Submit(ctx context.Context, callBytes []byte) (*chain.Receipt, error) {
	api, _, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	extrinsic, err := EncodeUnsignedExtrinsic(callBytes)
	if err != nil {
		return nil, err
	}

	var hashHex string
	err = c.caller.Do(ctx, "author_submitExtrinsic", func(ctx context.Context) error {
		err := api.Client.Call(&hashHex, "author_submitExtrinsic", hexutil.Encode(extrinsic))
		var coded rpcCodedError
		if errors.As(err, &coded) {
			return transport.Permanent(pkgErrors.Wrapf(types.ErrSubmissionRejected, "node rejected extrinsic (code %d): %v", coded.ErrorCode(), err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	raw, err := hexutil.Decode(hashHex)
	if err != nil {
		return nil, fmt.Errorf("invalid extrinsic hash %q: %w", hashHex, err)
	}
	hash, err := types.HashFromBytes(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Sugar().Infow("Submitted unsigned extrinsic",
		"extrinsicHash", hash.Hex(),
		"size", len(extrinsic),
	)
	return &chain.Receipt{ExtrinsicHash: hash}, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint32, error) {
	api, _, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	var number uint32
	err = c.caller.Do(ctx, "chain_getHeader", func(ctx context.Context) error {
		header, err := api.RPC.Chain.GetHeaderLatest()
		if err != nil {
			return err
		}
		number = uint32(header.Number)
		return nil
	})
	return number, err
}

func (c *Client) AccountNonce(ctx context.Context, who types.AccountId) (uint64, error) {
	api, _, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	ss58, err := address.EncodeSS58(who, c.config.SS58Prefix)
	if err != nil {
		return 0, err
	}

	var nonce uint64
	err = c.caller.Do(ctx, "system_accountNextIndex", func(ctx context.Context) error {
		return api.Client.Call(&nonce, "system_accountNextIndex", ss58)
	})
	return nonce, err
}

func (c *Client) FreeBalance(ctx context.Context, who types.AccountId) (*big.Int, error) {
	api, meta, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	key, err := gsrpcTypes.CreateStorageKey(meta, "System", "Account", who[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create storage key: %w", err)
	}

	var info gsrpcTypes.AccountInfo
	var found bool
	err = c.caller.Do(ctx, "state_getStorage", func(ctx context.Context) error {
		ok, err := api.RPC.State.GetStorageLatest(key, &info)
		if err != nil {
			return err
		}
		found = ok
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found || info.Data.Free.Int == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(info.Data.Free.Int), nil
}
