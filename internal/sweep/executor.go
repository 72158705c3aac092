// internal/sweep/executor.go
package sweep

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/chain"
	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/marketplace"
	"github.com/roninsweep/sweepbot/internal/storage"
	"github.com/roninsweep/sweepbot/internal/storage/models"
	"github.com/roninsweep/sweepbot/internal/wallet"
)

// Submission is one submitted batch awaiting confirmation.
type Submission struct {
	Hash   common.Hash
	Batch  OrderBatch
	Record *models.SweepTransaction
}

// Executor submits batched settle transactions, one batch at a time. Gas
// price and limit are resolved once per batch at submission time. A failure
// to submit batch k stops batches k+1..n; on-chain execution failure of an
// earlier batch does not, since each batch is an independent transaction.
//
// The executor owns the signer's nonce sequence: concurrent sweeps share one
// wallet, so nonce allocation is serialized across SubmitAll calls and the
// next nonce is cached between them.
type Executor struct {
	chain   chain.Client
	signer  wallet.Signer
	gateway *exchange.Gateway
	store   storage.Storage
	cfg     Config
	logger  *zap.Logger

	nonceMu    sync.Mutex
	nextNonce  uint64
	nonceValid bool
}

func NewExecutor(chainClient chain.Client, signer wallet.Signer, gateway *exchange.Gateway, store storage.Storage, cfg Config, logger *zap.Logger) *Executor {
	return &Executor{
		chain:   chainClient,
		signer:  signer,
		gateway: gateway,
		store:   store,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("executor"),
	}
}

// SubmitAll submits the batches sequentially, persisting a Pending record for
// each obtained hash. Returned submissions are valid even when err != nil:
// they are the batches that made it out before the failure.
func (ex *Executor) SubmitAll(ctx context.Context, req Request, batches []OrderBatch) ([]Submission, error) {
	var submissions []Submission

	ex.nonceMu.Lock()
	defer ex.nonceMu.Unlock()

	if !ex.nonceValid {
		nonce, err := ex.chain.PendingNonce(ctx, ex.signer.Address())
		if err != nil {
			return nil, fmt.Errorf("%w: resolve nonce: %v", ErrSubmissionFailed, err)
		}
		ex.nextNonce = nonce
		ex.nonceValid = true
	}

	for i, batch := range batches {
		if ex.cfg.VerifyBeforeSubmit {
			batch = ex.verifyBatch(ctx, batch)
			if len(batch.Orders) == 0 {
				ex.logger.Warn("batch fully consumed before submission, skipping",
					zap.Int("batch", i+1))
				continue
			}
		}

		sub, err := ex.submitBatch(ctx, req, batch, ex.nextNonce)
		if err != nil {
			// Submission itself failed: no hash, no record, and no later
			// batches. The node may or may not have seen the send, so the
			// cached nonce is stale until re-synced.
			ex.nonceValid = false
			return submissions, fmt.Errorf("%w: batch %d/%d: %v", ErrSubmissionFailed, i+1, len(batches), err)
		}
		ex.nextNonce++
		submissions = append(submissions, sub)

		ex.logger.Info("batch submitted",
			zap.String("tx_hash", sub.Hash.Hex()),
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("items", len(batch.Orders)),
			zap.String("total_ron", marketplace.FormatRON(batch.Total)))
	}
	return submissions, nil
}

// verifyBatch re-checks order state on-chain immediately before submission
// and drops orders no longer open, shrinking the batch and its payment value.
// Verification failure keeps the batch as-is: stale orders then surface as an
// on-chain revert instead.
func (ex *Executor) verifyBatch(ctx context.Context, batch OrderBatch) OrderBatch {
	data, err := ex.gateway.OrderStatesCalldata(batch.Orders)
	if err != nil {
		ex.logger.Warn("order state calldata failed, submitting unverified", zap.Error(err))
		return batch
	}

	to := ex.gateway.Address()
	out, err := ex.chain.Call(ctx, ethereum.CallMsg{
		From: ex.signer.Address(),
		To:   &to,
		Data: data,
	})
	if err != nil {
		ex.logger.Warn("order state call failed, submitting unverified", zap.Error(err))
		return batch
	}

	states, err := ex.gateway.DecodeOrderStates(out)
	if err != nil || len(states) != len(batch.Orders) {
		ex.logger.Warn("order state decode failed, submitting unverified", zap.Error(err))
		return batch
	}

	kept := OrderBatch{Total: new(big.Int)}
	for i, state := range states {
		if state != exchange.OrderStateOpen {
			ex.logger.Info("dropping stale order",
				zap.String("listing_id", batch.Orders[i].ListingID),
				zap.Uint8("state", state))
			continue
		}
		kept.Orders = append(kept.Orders, batch.Orders[i])
		kept.Prices = append(kept.Prices, batch.Prices[i])
		kept.Total.Add(kept.Total, batch.Prices[i])
	}
	return kept
}

func (ex *Executor) submitBatch(ctx context.Context, req Request, batch OrderBatch, nonce uint64) (Submission, error) {
	data, err := ex.gateway.SettleCalldata(batch.Orders, batch.Prices)
	if err != nil {
		return Submission{}, fmt.Errorf("build calldata: %w", err)
	}

	to := ex.gateway.Address()
	gasLimit := ex.resolveGasLimit(ctx, batch, data)
	gasPrice, err := ex.chain.GasPrice(ctx)
	if err != nil {
		ex.logger.Warn("gas price lookup failed, using static fallback", zap.Error(err))
		gasPrice = ex.cfg.FallbackGasPrice
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    batch.Total,
		Data:     data,
	})

	signed, err := ex.signer.SignTx(tx, ex.chain.ChainID())
	if err != nil {
		return Submission{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := ex.chain.SendTransaction(ctx, signed); err != nil {
		return Submission{}, fmt.Errorf("send transaction: %w", err)
	}

	record := &models.SweepTransaction{
		Hash:          signed.Hash().Hex(),
		UserID:        req.UserID,
		WalletAddress: ex.signer.Address().Hex(),
		Collection:    req.Collection,
		ItemIDs:       strings.Join(batch.ListingIDs(), ","),
		TotalAmount:   batch.Total.String(),
		Status:        models.StatusPending,
	}
	if err := ex.store.SaveTransaction(ctx, record); err != nil {
		// The transaction is already on the wire; losing the record would
		// orphan it, so surface the persistence failure loudly but keep the
		// submission.
		ex.logger.Error("failed to persist pending transaction",
			zap.String("tx_hash", record.Hash),
			zap.Error(err))
	}

	return Submission{
		Hash:   signed.Hash(),
		Batch:  batch,
		Record: record,
	}, nil
}

// resolveGasLimit asks the node for an estimate and applies the safety
// buffer. Estimation failure falls back to the configured limit scaled by
// item count; the fallback is already conservative, so no buffer there.
func (ex *Executor) resolveGasLimit(ctx context.Context, batch OrderBatch, data []byte) uint64 {
	to := ex.gateway.Address()
	estimated, err := ex.chain.EstimateGas(ctx, ethereum.CallMsg{
		From:  ex.signer.Address(),
		To:    &to,
		Value: batch.Total,
		Data:  data,
	})
	if err != nil {
		fallback := ex.cfg.GasBase + ex.cfg.FallbackGasPerItem*uint64(len(batch.Orders))
		ex.logger.Warn("gas estimation failed, using fallback limit",
			zap.Uint64("fallback_gas", fallback),
			zap.Error(err))
		return fallback
	}
	return estimated * uint64(ex.cfg.GasBufferPercent) / 100
}
