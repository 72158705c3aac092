// internal/sweep/types.go
package sweep

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roninsweep/sweepbot/internal/exchange"
	"github.com/roninsweep/sweepbot/internal/marketplace"
)

var (
	// ErrConfirmationTimeout marks an unknown outcome: the receipt never
	// appeared within the polling budget. Distinct from an on-chain revert.
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

	ErrSubmissionFailed = errors.New("batch submission failed")
)

// Config carries every pipeline knob with its default. Constructed once,
// immutable afterwards.
type Config struct {
	MaxQuantity      int
	MaxBatchSize     int
	OverfetchCeiling int

	// Gas model: units = GasBase + GasPerItem*n. The buffer applies only to
	// on-chain gas-limit estimates, never to the static fallback.
	GasBase            uint64
	GasPerItem         uint64
	GasBufferPercent   int
	FallbackGasPerItem uint64
	FallbackGasPrice   *big.Int

	DefaultDailyLimit *big.Int

	PollInterval    time.Duration
	MaxPollAttempts int

	VerifyBeforeSubmit bool
}

func (c Config) withDefaults() Config {
	if c.MaxQuantity <= 0 {
		c.MaxQuantity = 100
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 20
	}
	if c.OverfetchCeiling < c.MaxQuantity {
		c.OverfetchCeiling = c.MaxQuantity
	}
	if c.GasBase == 0 {
		c.GasBase = 250_000
	}
	if c.GasPerItem == 0 {
		c.GasPerItem = 180_000
	}
	if c.GasBufferPercent < 100 {
		c.GasBufferPercent = 120
	}
	if c.FallbackGasPerItem == 0 {
		c.FallbackGasPerItem = c.GasPerItem
	}
	if c.FallbackGasPrice == nil {
		c.FallbackGasPrice = big.NewInt(20_000_000_000) // 20 gwei
	}
	if c.DefaultDailyLimit == nil {
		c.DefaultDailyLimit = new(big.Int).Mul(big.NewInt(500), big.NewInt(1e18))
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 20
	}
	return c
}

// Request describes one sweep. Validated once at entry, immutable afterwards.
type Request struct {
	UserID          string
	Wallet          common.Address
	Collection      string
	Quantity        int
	MaxPricePerItem *big.Int // optional ceiling, wei
}

// Validate rejects malformed requests before any external call.
func (r *Request) Validate(maxQuantity int) error {
	if r.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if r.Wallet == (common.Address{}) {
		return fmt.Errorf("wallet address cannot be empty")
	}
	if r.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than zero")
	}
	if r.Quantity > maxQuantity {
		return fmt.Errorf("quantity %d exceeds the cap of %d", r.Quantity, maxQuantity)
	}
	if r.MaxPricePerItem != nil && r.MaxPricePerItem.Sign() <= 0 {
		return fmt.Errorf("max price per item must be greater than zero")
	}
	return nil
}

// SkippedListing names a listing left out of the sweep and why.
type SkippedListing struct {
	ID     string
	Reason string
}

// LimitDecline carries the limiting values of a spending-guard rejection for
// display. A declined sweep is a normal outcome, not an error.
type LimitDecline struct {
	Limit     *big.Int
	Spent     *big.Int // confirmed + reserved for the current day window
	Requested *big.Int
}

func (d *LimitDecline) String() string {
	return fmt.Sprintf("daily limit exceeded: limit %s RON, already committed %s RON, requested %s RON",
		marketplace.FormatRON(d.Limit), marketplace.FormatRON(d.Spent), marketplace.FormatRON(d.Requested))
}

// Preview is the derived, non-persistent result of the discovery phase.
// Invariants: TotalCost is the exact integer sum of candidate prices and
// len(Candidates) never exceeds the requested quantity.
type Preview struct {
	Candidates   []marketplace.Listing
	Skipped      []SkippedListing
	TotalCost    *big.Int
	AveragePrice *big.Int
	GasEstimate  *big.Int
	TotalWithGas *big.Int

	// Declined is set when the spending guard rejected the preview amount.
	Declined *LimitDecline
}

// Empty reports the valid "no matches" outcome.
func (p *Preview) Empty() bool {
	return len(p.Candidates) == 0
}

// OrderBatch is one chunk of settlement orders, bounded by the batch cap and
// settled in a single on-chain transaction. Prices align with Orders.
type OrderBatch struct {
	Orders []exchange.Order
	Prices []*big.Int
	Total  *big.Int
}

// ListingIDs returns the ids of the listings backing the batch, in order.
func (b OrderBatch) ListingIDs() []string {
	ids := make([]string, len(b.Orders))
	for i, o := range b.Orders {
		ids[i] = o.ListingID
	}
	return ids
}

// DayStart aligns a timestamp to its UTC midnight, the ledger's day window.
func DayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
