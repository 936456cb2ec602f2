package testutil

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/chain"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/stretchr/testify/mock"
)

// MockChainClient provides a mock for chain.IChainClient.
// EncodeCall may be stubbed with a func(context.Context, chain.CallDescriptor) ([]byte, error)
// to compute bytes from the descriptor.
type MockChainClient struct {
	mock.Mock
}

var _ chain.IChainClient = (*MockChainClient)(nil)

func (m *MockChainClient) ChainMetadata(ctx context.Context) (eip712.ChainMetadata, error) {
	args := m.Called(ctx)
	return args.Get(0).(eip712.ChainMetadata), args.Error(1)
}

func (m *MockChainClient) EncodeCall(ctx context.Context, call chain.CallDescriptor) ([]byte, error) {
	args := m.Called(ctx, call)
	if fn, ok := args.Get(0).(func(context.Context, chain.CallDescriptor) ([]byte, error)); ok {
		return fn(ctx, call)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChainClient) Submit(ctx context.Context, callBytes []byte) (*chain.Receipt, error) {
	args := m.Called(ctx, callBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Receipt), args.Error(1)
}

func (m *MockChainClient) BlockNumber(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *MockChainClient) AccountNonce(ctx context.Context, who types.AccountId) (uint64, error) {
	args := m.Called(ctx, who)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainClient) FreeBalance(ctx context.Context, who types.AccountId) (*big.Int, error) {
	args := m.Called(ctx, who)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// CallEncoder encodes calls the way the runtime does for a fixed call index table
func CallEncoder(indices map[string][2]byte) func(context.Context, chain.CallDescriptor) ([]byte, error) {
	return func(_ context.Context, call chain.CallDescriptor) ([]byte, error) {
		index, ok := indices[call.Name]
		if !ok {
			return nil, fmt.Errorf("unknown call %s", call.Name)
		}
		var buf bytes.Buffer
		enc := scale.NewEncoder(&buf)
		if err := enc.Write(index[:]); err != nil {
			return nil, err
		}
		for _, arg := range call.Args {
			if err := enc.Encode(arg); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil
	}
}

// DevCallIndices are the call indices of the development runtime
var DevCallIndices = map[string][2]byte{
	chain.RemarkWithEventName: {0x00, 0x07},
	chain.MetaCallName:        {0x07, 0x00},
}
