// internal/sweep/mocks_test.go
package sweep

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/marketplace"
	"github.com/roninsweep/sweepbot/internal/wallet"
)

// Hardhat's well-known dev key; never funded on any real network.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testGatewayAddress = "0x213073989821f738A7BA3520C3D31a1F9aD31bBd"

// fakeChain implements chain.Client in-memory. Behaviour is driven by the
// optional function fields; unset fields fall back to benign defaults.
type fakeChain struct {
	mu sync.Mutex

	chainID     *big.Int
	gasPrice    *big.Int
	gasPriceErr error
	estimate    uint64
	estimateErr error
	nonce       uint64
	nonceErr    error
	sendErr     error
	failSendAt  int // 1-based send index that returns sendErr; 0 means every send
	sent        []*types.Transaction
	receiptFn   func(hash common.Hash) (*types.Receipt, error)
	callFn      func(msg ethereum.CallMsg) ([]byte, error)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:  big.NewInt(2020),
		gasPrice: big.NewInt(20_000_000_000),
		estimate: 500_000,
	}
}

func (f *fakeChain) ChainID() *big.Int { return f.chainID }

func (f *fakeChain) GasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeChain) PendingNonce(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonce, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil && (f.failSendAt == 0 || f.failSendAt == len(f.sent)+1) {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChain) Receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	fn := f.receiptFn
	f.mu.Unlock()
	if fn == nil {
		return nil, ethereum.NotFound
	}
	return fn(hash)
}

func (f *fakeChain) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	fn := f.callFn
	f.mu.Unlock()
	if fn == nil {
		return nil, ethereum.NotFound
	}
	return fn(msg)
}

// fakeSource implements ListingSource with a canned page.
type fakeSource struct {
	mu       sync.Mutex
	listings []marketplace.Listing
	total    int
	err      error
	queries  []marketplace.Query
}

func (f *fakeSource) FetchListings(_ context.Context, q marketplace.Query) ([]marketplace.Listing, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.listings, f.total, nil
}

func ron(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := marketplace.ParseRON(s)
	require.NoError(t, err)
	return v
}

// sellableListing returns a listing carrying every settlement field, priced
// in RON.
func sellableListing(t *testing.T, id, priceRON string) marketplace.Listing {
	t.Helper()
	price := ron(t, priceRON)
	return marketplace.Listing{
		ID:           id,
		Collection:   "0x32950db2a7164ae833121501c797d79e7b79d74c",
		Seller:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TokenAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		TokenID:      new(big.Int).SetBytes([]byte(id)),
		Price:        price,
		BasePrice:    new(big.Int).Set(price),
		StartedAt:    time.Now().Add(-time.Hour).Unix(),
		ExpiredAt:    time.Now().Add(time.Hour).Unix(),
		Nonce:        7,
		Signature:    make([]byte, 65),
	}
}

func testGateway(t *testing.T) *exchange.Gateway {
	t.Helper()
	gw, err := exchange.NewGateway(common.HexToAddress(testGatewayAddress))
	require.NoError(t, err)
	return gw
}

func testSigner(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.FromHex(testPrivateKey)
	require.NoError(t, err)
	return w
}

func testConfig() Config {
	return Config{
		MaxQuantity:        100,
		MaxBatchSize:       20,
		OverfetchCeiling:   100,
		GasBase:            250_000,
		GasPerItem:         180_000,
		GasBufferPercent:   120,
		FallbackGasPerItem: 180_000,
		FallbackGasPrice:   big.NewInt(20_000_000_000),
		PollInterval:       5 * time.Millisecond,
		MaxPollAttempts:    5,
	}
}
