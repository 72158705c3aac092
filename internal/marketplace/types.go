// internal/marketplace/types.go
package marketplace

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Listing is an immutable snapshot of one marketplace entry. It may go stale
// (sold or cancelled) between fetch and settlement; the pipeline detects that,
// it does not prevent it.
type Listing struct {
	ID         string
	Collection string

	// Settlement fields, required for on-chain order construction.
	Seller              common.Address
	TokenAddress        common.Address
	TokenID             *big.Int
	Price               *big.Int // current price in wei
	BasePrice           *big.Int
	EndedPrice          *big.Int
	StartedAt           int64
	ExpiredAt           int64
	EndedAt             int64
	Nonce               uint64
	MarketFeePercentage uint64 // permyriad
	Signature           []byte
}

// Sort orders supported by the listing API.
type Sort string

const (
	SortPriceAsc  Sort = "PriceAsc"
	SortPriceDesc Sort = "PriceDesc"
	SortIDAsc     Sort = "IdAsc"
	SortIDDesc    Sort = "IdDesc"
)

// AuctionType filters by sale mechanism.
type AuctionType string

const (
	AuctionSale AuctionType = "Sale"
	AuctionAll  AuctionType = "All"
)

// Query describes one structured listing search.
type Query struct {
	Collection    string
	Classes       []string
	MaxPrice      *big.Int // optional price ceiling, wei
	BreedCountMin *int
	BreedCountMax *int
	Purity        *int
	PartIDs       []string
	AuctionType   AuctionType
	Sort          Sort
	Offset        int
	Limit         int
}

// CacheKey returns a canonical composite key of (collection, filter set).
func (q Query) CacheKey() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	b.WriteByte('|')
	b.WriteString(strings.Join(q.Classes, ","))
	b.WriteByte('|')
	if q.MaxPrice != nil {
		b.WriteString(q.MaxPrice.String())
	}
	b.WriteByte('|')
	if q.BreedCountMin != nil {
		b.WriteString(strconv.Itoa(*q.BreedCountMin))
	}
	b.WriteByte('-')
	if q.BreedCountMax != nil {
		b.WriteString(strconv.Itoa(*q.BreedCountMax))
	}
	b.WriteByte('|')
	if q.Purity != nil {
		b.WriteString(strconv.Itoa(*q.Purity))
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(q.PartIDs, ","))
	b.WriteByte('|')
	b.WriteString(string(q.AuctionType))
	b.WriteByte('|')
	b.WriteString(string(q.Sort))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.Offset))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.Limit))
	return b.String()
}

// Stats aggregates collection-level pricing derived from a single
// price-ascending page.
type Stats struct {
	Floor       *big.Int
	Avg10       *big.Int
	Avg50       *big.Int
	Avg100      *big.Int
	TotalListed int
}

// FetchError reports that both listing endpoints failed. It carries the last
// underlying cause; callers must not assume partial results.
type FetchError struct {
	Endpoint string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("listing fetch failed (last endpoint %s): %v", e.Endpoint, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
