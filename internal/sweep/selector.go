// internal/sweep/selector.go
package sweep

import (
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/marketplace"
)

// Selector filters and ranks fetched listings into the purchase candidate
// set. The query client already sorts ascending by price; the selector does
// not depend on that for correctness, but it preserves input order.
type Selector struct {
	logger *zap.Logger
}

func NewSelector(logger *zap.Logger) *Selector {
	return &Selector{logger: logger.Named("selector")}
}

// Select returns at most quantity eligible listings. Listings missing
// settlement fields, already expired, or above the price ceiling are skipped
// with a reason. An empty result is a valid outcome, not an error.
func (s *Selector) Select(listings []marketplace.Listing, quantity int, maxPricePerItem *big.Int) ([]marketplace.Listing, []SkippedListing) {
	now := time.Now().Unix()
	candidates := make([]marketplace.Listing, 0, quantity)
	var skipped []SkippedListing

	for _, l := range listings {
		if len(candidates) == quantity {
			break
		}
		if maxPricePerItem != nil && l.Price.Cmp(maxPricePerItem) > 0 {
			// Input is price-ascending in the common case, but a stray
			// out-of-range listing must not end later ones' chances.
			skipped = append(skipped, SkippedListing{ID: l.ID, Reason: "price above ceiling"})
			continue
		}
		if l.ExpiredAt != 0 && l.ExpiredAt <= now {
			skipped = append(skipped, SkippedListing{ID: l.ID, Reason: "listing expired"})
			continue
		}
		if _, err := exchange.FromListing(l); err != nil {
			skipped = append(skipped, SkippedListing{ID: l.ID, Reason: err.Error()})
			continue
		}
		candidates = append(candidates, l)
	}

	if len(skipped) > 0 {
		s.logger.Debug("skipped ineligible listings",
			zap.Int("skipped", len(skipped)),
			zap.Int("selected", len(candidates)))
	}
	return candidates, skipped
}

// OverfetchLimit sizes the query so that listings sold between fetch and
// selection can be absorbed without a second round trip.
func OverfetchLimit(quantity, ceiling int) int {
	limit := quantity * 2
	if limit > ceiling {
		limit = ceiling
	}
	if limit < quantity {
		limit = quantity
	}
	return limit
}
