package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultTypedDataMethod = "eth_signTypedData_v4"

	// EIP-1193 provider error raised when the user declines a request
	userRejectedRequestCode = 4001
)

type Config struct {
	Url string
	// TypedDataMethod is the RPC method used for typed data. Remote signers
	// such as Web3Signer expose eth_signTypedData instead of the _v4 variant.
	TypedDataMethod string
	Timeout         time.Duration
	HttpClient      *http.Client
}

func DefaultConfig() *Config {
	return &Config{
		Url:             "http://127.0.0.1:8545",
		TypedDataMethod: DefaultTypedDataMethod,
		Timeout:         0,
	}
}

type Client struct {
	config *Config
	rpc    *rpc.Client
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Url == "" {
		return nil, fmt.Errorf("wallet url cannot be empty")
	}
	if cfg.TypedDataMethod == "" {
		cfg.TypedDataMethod = DefaultTypedDataMethod
	}

	var opts []rpc.ClientOption
	if cfg.HttpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(cfg.HttpClient))
	}
	c, err := rpc.DialOptions(ctx, cfg.Url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet at %s: %w", cfg.Url, err)
	}

	return &Client{config: cfg, rpc: c, logger: logger}, nil
}

// requestContext applies the configured timeout. A zero timeout waits for as
// long as the caller's context allows, which is what interactive wallets need.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout > 0 {
		return context.WithTimeout(ctx, c.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) EthAccounts(ctx context.Context) ([]common.Address, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, classifyError("eth_accounts", err)
	}
	return accounts, nil
}

func (c *Client) PersonalSign(ctx context.Context, account common.Address, message []byte) ([]byte, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	c.logger.Sugar().Debugw("Requesting personal signature",
		"account", account.Hex(),
		"messageLen", len(message),
	)

	var sig hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(message), account); err != nil {
		return nil, classifyError("personal_sign", err)
	}
	return sig, nil
}

func (c *Client) EthSignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error) {
	payload, err := json.Marshal(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	c.logger.Sugar().Debugw("Requesting typed data signature",
		"account", account.Hex(),
		"method", c.config.TypedDataMethod,
		"primaryType", typedData.PrimaryType,
	)

	var sig hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &sig, c.config.TypedDataMethod, account, string(payload)); err != nil {
		return nil, classifyError(c.config.TypedDataMethod, err)
	}
	return sig, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

// classifyError maps wallet rejections and caller cancellation to ErrCancelled
func classifyError(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedRequestCode {
		return pkgErrors.Wrapf(types.ErrCancelled, "%s rejected by user: %v", method, err)
	}
	if errors.Is(err, context.Canceled) {
		return pkgErrors.Wrapf(types.ErrCancelled, "%s: %v", method, err)
	}
	return fmt.Errorf("%s failed: %w", method, err)
}
