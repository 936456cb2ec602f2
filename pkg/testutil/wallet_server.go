package testutil

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/eip712"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/recovery"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// walletError carries an EIP-1193 provider error code
type walletError struct {
	code int
	msg  string
}

func (e *walletError) Error() string  { return e.msg }
func (e *walletError) ErrorCode() int { return e.code }

// ErrUserRejected is what a wallet returns when the user declines a prompt
var ErrUserRejected = &walletError{code: 4001, msg: "User rejected the request."}

// FakeWallet answers wallet JSON-RPC calls with a single in-memory key
type FakeWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu sync.Mutex
	// Reject makes signing requests fail as if the user declined them
	Reject bool
	// Hold blocks signing requests until the channel is closed
	Hold chan struct{}
	// Requests counts signing requests by method
	Requests map[string]int
}

func NewFakeWallet(key *ecdsa.PrivateKey) *FakeWallet {
	return &FakeWallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		Requests: map[string]int{},
	}
}

func (w *FakeWallet) Address() common.Address {
	return w.address
}

func (w *FakeWallet) SetReject(reject bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Reject = reject
}

func (w *FakeWallet) RequestCount(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Requests[method]
}

func (w *FakeWallet) begin(method string) error {
	w.mu.Lock()
	w.Requests[method]++
	reject, hold := w.Reject, w.Hold
	w.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if reject {
		return ErrUserRejected
	}
	return nil
}

func (w *FakeWallet) sign(digest []byte) hexutil.Bytes {
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		panic(err)
	}
	sig[64] += 27
	return sig
}

type ethService struct{ w *FakeWallet }

func (s *ethService) Accounts() []common.Address {
	return []common.Address{s.w.address}
}

// SignTypedData_v4 is served as eth_signTypedData_v4
func (s *ethService) SignTypedData_v4(account common.Address, payload string) (hexutil.Bytes, error) {
	return s.signTypedData("eth_signTypedData_v4", account, payload)
}

// SignTypedData is served as eth_signTypedData
func (s *ethService) SignTypedData(account common.Address, payload string) (hexutil.Bytes, error) {
	return s.signTypedData("eth_signTypedData", account, payload)
}

func (s *ethService) signTypedData(method string, account common.Address, payload string) (hexutil.Bytes, error) {
	if account != s.w.address {
		return nil, fmt.Errorf("unknown account %s", account.Hex())
	}
	if err := s.w.begin(method); err != nil {
		return nil, err
	}
	var typedData apitypes.TypedData
	if err := json.Unmarshal([]byte(payload), &typedData); err != nil {
		return nil, err
	}
	digest, err := eip712.Hash(typedData)
	if err != nil {
		return nil, err
	}
	return s.w.sign(digest[:]), nil
}

type personalService struct{ w *FakeWallet }

// Sign is served as personal_sign
func (s *personalService) Sign(message hexutil.Bytes, account common.Address) (hexutil.Bytes, error) {
	if account != s.w.address {
		return nil, fmt.Errorf("unknown account %s", account.Hex())
	}
	if err := s.w.begin("personal_sign"); err != nil {
		return nil, err
	}
	digest := recovery.PersonalMessageHash(message)
	return s.w.sign(digest[:]), nil
}

// StartFakeWallet serves w over HTTP JSON-RPC for the lifetime of the test
func StartFakeWallet(t *testing.T, w *FakeWallet) string {
	t.Helper()

	server := rpc.NewServer()
	if err := server.RegisterName("eth", &ethService{w: w}); err != nil {
		t.Fatalf("failed to register eth service: %v", err)
	}
	if err := server.RegisterName("personal", &personalService{w: w}); err != nil {
		t.Fatalf("failed to register personal service: %v", err)
	}

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		w.mu.Lock()
		if w.Hold != nil {
			select {
			case <-w.Hold:
			default:
				close(w.Hold)
			}
		}
		w.mu.Unlock()
		httpServer.Close()
		server.Stop()
	})
	return httpServer.URL
}
