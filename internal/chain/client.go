// internal/chain/client.go
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Client is the chain RPC collaborator consumed by the sweep pipeline.
// Fakes stand in for it in tests.
type Client interface {
	ChainID() *big.Int
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

type rpcClient struct {
	ec      *ethclient.Client
	chainID *big.Int
	timeout time.Duration
	retries uint64
	logger  *zap.Logger
}

// Dial connects to the RPC endpoint and resolves the chain id once.
func Dial(ctx context.Context, rawURL string, timeout time.Duration, logger *zap.Logger) (Client, error) {
	ec, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	chainID, err := ec.ChainID(cctx)
	if err != nil {
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}

	return &rpcClient{
		ec:      ec,
		chainID: chainID,
		timeout: timeout,
		retries: 3,
		logger:  logger.Named("chain"),
	}, nil
}

func (c *rpcClient) ChainID() *big.Int {
	return c.chainID
}

func (c *rpcClient) GasPrice(ctx context.Context) (*big.Int, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ec.SuggestGasPrice(cctx)
}

func (c *rpcClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ec.EstimateGas(cctx, msg)
}

func (c *rpcClient) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ec.PendingNonceAt(cctx, account)
}

// SendTransaction submits a signed transaction, retrying transient RPC
// failures with exponential backoff bounded by the caller's context.
func (c *rpcClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	operation := func() error {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if err := c.ec.SendTransaction(cctx, tx); err != nil {
			c.logger.Warn("retrying transaction send",
				zap.String("tx_hash", tx.Hash().Hex()),
				zap.Error(err))
			return err
		}
		return nil
	}
	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx))
}

func (c *rpcClient) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ec.TransactionReceipt(cctx, txHash)
}

func (c *rpcClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ec.CallContract(cctx, msg, nil)
}
