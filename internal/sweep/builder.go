// internal/sweep/builder.go
package sweep

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/marketplace"
)

// Builder packs candidates into settlement batches. Chunk boundaries preserve
// the original price-ascending order; no reordering across or within chunks.
type Builder struct {
	maxBatchSize int
	logger       *zap.Logger
}

func NewBuilder(maxBatchSize int, logger *zap.Logger) *Builder {
	if maxBatchSize <= 0 {
		maxBatchSize = 20
	}
	return &Builder{
		maxBatchSize: maxBatchSize,
		logger:       logger.Named("builder"),
	}
}

// Build maps candidates to protocol order records and splits them into
// batches of at most the cap. A candidate missing a required settlement field
// is excluded and reported, never silently dropped.
func (b *Builder) Build(candidates []marketplace.Listing) ([]OrderBatch, []SkippedListing) {
	orders := make([]exchange.Order, 0, len(candidates))
	prices := make([]*big.Int, 0, len(candidates))
	var skipped []SkippedListing

	for _, c := range candidates {
		order, err := exchange.FromListing(c)
		if err != nil {
			b.logger.Warn("excluding candidate from batch",
				zap.String("listing_id", c.ID),
				zap.Error(err))
			skipped = append(skipped, SkippedListing{ID: c.ID, Reason: err.Error()})
			continue
		}
		orders = append(orders, order)
		prices = append(prices, new(big.Int).Set(c.Price))
	}

	var batches []OrderBatch
	for start := 0; start < len(orders); start += b.maxBatchSize {
		end := start + b.maxBatchSize
		if end > len(orders) {
			end = len(orders)
		}

		total := new(big.Int)
		for _, p := range prices[start:end] {
			total.Add(total, p)
		}
		batches = append(batches, OrderBatch{
			Orders: orders[start:end],
			Prices: prices[start:end],
			Total:  total,
		})
	}
	return batches, skipped
}
