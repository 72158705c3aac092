// internal/exchange/gateway.go
package exchange

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// gatewayABI covers the two entry points the pipeline uses: the payable
// batched settle call and the read-only per-order state lookup.
const gatewayABI = `[
  {
    "name": "settleOrders",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      {
        "name": "orders",
        "type": "tuple[]",
        "components": [
          {"name": "maker", "type": "address"},
          {"name": "tokenAddress", "type": "address"},
          {"name": "tokenId", "type": "uint256"},
          {"name": "startedAt", "type": "uint256"},
          {"name": "expiredAt", "type": "uint256"},
          {"name": "basePrice", "type": "uint256"},
          {"name": "endedAt", "type": "uint256"},
          {"name": "endedPrice", "type": "uint256"},
          {"name": "nonce", "type": "uint256"},
          {"name": "marketFeePercentage", "type": "uint256"},
          {"name": "signature", "type": "bytes"}
        ]
      },
      {"name": "expectedPrices", "type": "uint256[]"}
    ],
    "outputs": []
  },
  {
    "name": "orderStates",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{"name": "hashes", "type": "bytes32[]"}],
    "outputs": [{"name": "states", "type": "uint8[]"}]
  }
]`

// abiOrder mirrors the settleOrders tuple. Field names must line up with the
// ABI component names for argument packing.
type abiOrder struct {
	Maker               common.Address
	TokenAddress        common.Address
	TokenId             *big.Int
	StartedAt           *big.Int
	ExpiredAt           *big.Int
	BasePrice           *big.Int
	EndedAt             *big.Int
	EndedPrice          *big.Int
	Nonce               *big.Int
	MarketFeePercentage *big.Int
	Signature           []byte
}

// Gateway packs call data for the marketplace settlement contract.
type Gateway struct {
	address common.Address
	abi     abi.ABI
}

func NewGateway(address common.Address) (*Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(gatewayABI))
	if err != nil {
		return nil, fmt.Errorf("parse gateway ABI: %w", err)
	}
	return &Gateway{address: address, abi: parsed}, nil
}

func (g *Gateway) Address() common.Address {
	return g.address
}

// SettleCalldata packs the batched settle call. The transaction paying for it
// must carry a value equal to the sum of expectedPrices.
func (g *Gateway) SettleCalldata(orders []Order, expectedPrices []*big.Int) ([]byte, error) {
	if len(orders) == 0 {
		return nil, fmt.Errorf("no orders to settle")
	}
	if len(orders) != len(expectedPrices) {
		return nil, fmt.Errorf("orders/prices length mismatch: %d != %d", len(orders), len(expectedPrices))
	}

	packed := make([]abiOrder, len(orders))
	for i, o := range orders {
		packed[i] = abiOrder{
			Maker:               o.Maker,
			TokenAddress:        o.TokenAddress,
			TokenId:             o.TokenID,
			StartedAt:           o.StartedAt,
			ExpiredAt:           o.ExpiredAt,
			BasePrice:           o.BasePrice,
			EndedAt:             o.EndedAt,
			EndedPrice:          o.EndedPrice,
			Nonce:               o.Nonce,
			MarketFeePercentage: o.MarketFeePercentage,
			Signature:           o.Signature,
		}
	}

	data, err := g.abi.Pack("settleOrders", packed, expectedPrices)
	if err != nil {
		return nil, fmt.Errorf("pack settleOrders: %w", err)
	}
	return data, nil
}

// OrderStatesCalldata packs the read-only state lookup for the given orders.
func (g *Gateway) OrderStatesCalldata(orders []Order) ([]byte, error) {
	hashes := make([]common.Hash, len(orders))
	for i, o := range orders {
		hashes[i] = o.Hash()
	}
	data, err := g.abi.Pack("orderStates", hashes)
	if err != nil {
		return nil, fmt.Errorf("pack orderStates: %w", err)
	}
	return data, nil
}

// DecodeOrderStates unpacks the state lookup result.
func (g *Gateway) DecodeOrderStates(data []byte) ([]uint8, error) {
	values, err := g.abi.Methods["orderStates"].Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack orderStates: %w", err)
	}
	states, ok := values[0].([]uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected orderStates result type %T", values[0])
	}
	return states, nil
}
