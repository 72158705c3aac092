// internal/exchange/order.go
package exchange

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roninsweep/sweepbot/internal/marketplace"
)

// Order is one maker-signed settlement record, as the market gateway contract
// expects it.
type Order struct {
	Maker               common.Address
	TokenAddress        common.Address
	TokenID             *big.Int
	StartedAt           *big.Int
	ExpiredAt           *big.Int
	BasePrice           *big.Int
	EndedAt             *big.Int
	EndedPrice          *big.Int
	Nonce               *big.Int
	MarketFeePercentage *big.Int
	Signature           []byte

	// ListingID ties the order back to the listing it was built from.
	ListingID string
}

// On-chain order states returned by the gateway's read-only state call.
const (
	OrderStateOpen uint8 = iota
	OrderStateFilled
	OrderStateCancelled
	OrderStateExpired
)

// FromListing builds a settlement order from a listing snapshot. A listing
// missing any required settlement field is rejected with the field named, so
// the caller can report why it was skipped.
func FromListing(l marketplace.Listing) (Order, error) {
	switch {
	case l.Seller == (common.Address{}):
		return Order{}, fmt.Errorf("listing %s: missing seller", l.ID)
	case l.TokenAddress == (common.Address{}):
		return Order{}, fmt.Errorf("listing %s: missing token address", l.ID)
	case l.TokenID == nil:
		return Order{}, fmt.Errorf("listing %s: missing token id", l.ID)
	case l.BasePrice == nil:
		return Order{}, fmt.Errorf("listing %s: missing base price", l.ID)
	case l.ExpiredAt == 0:
		return Order{}, fmt.Errorf("listing %s: missing expiry", l.ID)
	case len(l.Signature) != 65:
		return Order{}, fmt.Errorf("listing %s: missing or malformed signature", l.ID)
	}

	endedPrice := l.EndedPrice
	if endedPrice == nil {
		endedPrice = l.BasePrice
	}

	return Order{
		Maker:               l.Seller,
		TokenAddress:        l.TokenAddress,
		TokenID:             new(big.Int).Set(l.TokenID),
		StartedAt:           big.NewInt(l.StartedAt),
		ExpiredAt:           big.NewInt(l.ExpiredAt),
		BasePrice:           new(big.Int).Set(l.BasePrice),
		EndedAt:             big.NewInt(l.EndedAt),
		EndedPrice:          new(big.Int).Set(endedPrice),
		Nonce:               new(big.Int).SetUint64(l.Nonce),
		MarketFeePercentage: new(big.Int).SetUint64(l.MarketFeePercentage),
		Signature:           l.Signature,
		ListingID:           l.ID,
	}, nil
}

// Hash identifies the order for the gateway's state lookup.
func (o Order) Hash() common.Hash {
	buf := make([]byte, 0, 20+20+32*3)
	buf = append(buf, o.Maker.Bytes()...)
	buf = append(buf, o.TokenAddress.Bytes()...)
	buf = append(buf, common.LeftPadBytes(o.TokenID.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(o.BasePrice.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(o.Nonce.Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}
