// internal/sweep/service.go
package sweep

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/chain"
	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/marketplace"
	"github.com/roninsweep/sweepbot/internal/storage"
	"github.com/roninsweep/sweepbot/internal/storage/models"
	"github.com/roninsweep/sweepbot/internal/wallet"
)

// ListingSource feeds the pipeline with marketplace data.
// marketplace.Client satisfies it.
type ListingSource interface {
	FetchListings(ctx context.Context, q marketplace.Query) ([]marketplace.Listing, int, error)
}

// Service is the sweep pipeline facade: preview -> authorize -> build ->
// submit -> monitor. One call runs one sweep; independent calls may run
// concurrently and contend only on the query client's rate limiter and the
// per-user spending guard.
type Service struct {
	cfg       Config
	source    ListingSource
	selector  *Selector
	estimator *Estimator
	guard     *Guard
	builder   *Builder
	executor  *Executor
	monitor   *Monitor
	store     storage.Storage
	logger    *zap.Logger
}

func NewService(
	cfg Config,
	source ListingSource,
	chainClient chain.Client,
	signer wallet.Signer,
	gateway *exchange.Gateway,
	store storage.Storage,
	logger *zap.Logger,
) *Service {
	cfg = cfg.withDefaults()
	guard := NewGuard(store, cfg.DefaultDailyLimit, logger)
	return &Service{
		cfg:       cfg,
		source:    source,
		selector:  NewSelector(logger),
		estimator: NewEstimator(chainClient, cfg, logger),
		guard:     guard,
		builder:   NewBuilder(cfg.MaxBatchSize, logger),
		executor:  NewExecutor(chainClient, signer, gateway, store, cfg, logger),
		monitor:   NewMonitor(chainClient, store, guard, cfg, logger),
		store:     store,
		logger:    logger.Named("sweep"),
	}
}

// Preview discovers candidates and estimates cost without committing to
// anything. An empty candidate set and a guard decline are both valid
// previews, not errors.
func (s *Service) Preview(ctx context.Context, req Request) (*Preview, error) {
	if err := req.Validate(s.cfg.MaxQuantity); err != nil {
		return nil, err
	}

	candidates, skipped, err := s.discover(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Preview{Skipped: skipped, TotalCost: new(big.Int), GasEstimate: new(big.Int), TotalWithGas: new(big.Int)}, nil
	}

	est := s.estimator.Estimate(ctx, candidates)
	preview := &Preview{
		Candidates:   candidates,
		Skipped:      skipped,
		TotalCost:    est.TotalCost,
		AveragePrice: est.AveragePrice,
		GasEstimate:  est.GasEstimate,
		TotalWithGas: est.TotalWithGas,
	}

	// Advisory only; the authoritative check runs right before submission.
	decline, err := s.guard.Authorize(ctx, req.UserID, est.TotalCost)
	if err != nil {
		return nil, err
	}
	preview.Declined = decline
	return preview, nil
}

// Execution tracks one in-flight sweep. The caller holds the Pending records
// immediately after Execute returns and may Wait for terminal outcomes or
// detach; monitoring finishes in the background either way, updating only the
// persisted records.
type Execution struct {
	Preview   *Preview
	Submitted []*models.SweepTransaction

	wg       sync.WaitGroup
	mu       sync.Mutex
	outcomes []BatchOutcome
}

// Wait blocks until every submitted batch reached a terminal state.
func (e *Execution) Wait() []BatchOutcome {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]BatchOutcome, len(e.outcomes))
	copy(out, e.outcomes)
	return out
}

// Execute runs the full pipeline. A declined or empty preview returns with no
// submissions and a nil error; infrastructure failures surface as errors
// scoped to this one sweep attempt.
func (s *Service) Execute(ctx context.Context, req Request) (*Execution, error) {
	if err := req.Validate(s.cfg.MaxQuantity); err != nil {
		return nil, err
	}

	candidates, skipped, err := s.discover(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Execution{Preview: &Preview{Skipped: skipped, TotalCost: new(big.Int), GasEstimate: new(big.Int), TotalWithGas: new(big.Int)}}, nil
	}

	est := s.estimator.Estimate(ctx, candidates)
	preview := &Preview{
		Candidates:   candidates,
		Skipped:      skipped,
		TotalCost:    est.TotalCost,
		AveragePrice: est.AveragePrice,
		GasEstimate:  est.GasEstimate,
		TotalWithGas: est.TotalWithGas,
	}
	exec := &Execution{Preview: preview}

	batches, batchSkipped := s.builder.Build(candidates)
	preview.Skipped = append(preview.Skipped, batchSkipped...)
	if len(batches) == 0 {
		return exec, nil
	}

	// Authoritative limit check, serialized per user with the reservation.
	reserved := new(big.Int).Set(est.TotalCost)
	decline, err := s.guard.Reserve(ctx, req.UserID, reserved)
	if err != nil {
		return nil, err
	}
	if decline != nil {
		preview.Declined = decline
		return exec, nil
	}

	submissions, submitErr := s.executor.SubmitAll(ctx, req, batches)

	// Anything not actually submitted (submission failure, stale orders
	// dropped by pre-submission verification) must not stay reserved.
	submittedTotal := new(big.Int)
	for _, sub := range submissions {
		submittedTotal.Add(submittedTotal, sub.Batch.Total)
	}
	if diff := new(big.Int).Sub(reserved, submittedTotal); diff.Sign() > 0 {
		s.guard.Release(req.UserID, diff)
	}

	for _, sub := range submissions {
		exec.Submitted = append(exec.Submitted, sub.Record)
		exec.wg.Add(1)
		go func(sub Submission) {
			defer exec.wg.Done()
			// Detached from the caller: monitoring is bounded by the attempt
			// budget, not the request context.
			outcome := s.monitor.Resolve(context.WithoutCancel(ctx), req.UserID, sub)
			exec.mu.Lock()
			exec.outcomes = append(exec.outcomes, outcome)
			exec.mu.Unlock()
		}(sub)
	}

	if submitErr != nil {
		return exec, submitErr
	}
	return exec, nil
}

// Transactions exposes the persisted sweep history for a user, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.SweepTransaction, error) {
	return s.store.ListTransactions(ctx, userID, limit, offset)
}

// SetDailyLimit overrides the user's daily spending limit.
func (s *Service) SetDailyLimit(ctx context.Context, userID string, limit *big.Int) error {
	if limit == nil || limit.Sign() <= 0 {
		return fmt.Errorf("daily limit must be greater than zero")
	}
	return s.store.SetDailyLimit(ctx, userID, limit)
}

// discover fetches an over-provisioned price-ascending page and selects the
// eligible candidates from it.
func (s *Service) discover(ctx context.Context, req Request) ([]marketplace.Listing, []SkippedListing, error) {
	listings, total, err := s.source.FetchListings(ctx, marketplace.Query{
		Collection:  req.Collection,
		MaxPrice:    req.MaxPricePerItem,
		AuctionType: marketplace.AuctionSale,
		Sort:        marketplace.SortPriceAsc,
		Limit:       OverfetchLimit(req.Quantity, s.cfg.OverfetchCeiling),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("discover listings: %w", err)
	}

	s.logger.Debug("listings discovered",
		zap.String("collection", req.Collection),
		zap.Int("fetched", len(listings)),
		zap.Int("total_listed", total))

	candidates, skipped := s.selector.Select(listings, req.Quantity, req.MaxPricePerItem)
	return candidates, skipped, nil
}
