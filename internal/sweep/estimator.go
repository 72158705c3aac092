// internal/sweep/estimator.go
package sweep

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/roninsweep/sweepbot/internal/marketplace"
)

// GasOracle supplies the current network gas price. chain.Client satisfies it.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Estimate is the cost side of a sweep preview. Monetary sums are exact
// integer arithmetic; floats appear only in log formatting.
type Estimate struct {
	TotalCost    *big.Int
	AveragePrice *big.Int
	GasEstimate  *big.Int
	TotalWithGas *big.Int
}

type Estimator struct {
	oracle GasOracle
	cfg    Config
	logger *zap.Logger
}

func NewEstimator(oracle GasOracle, cfg Config, logger *zap.Logger) *Estimator {
	return &Estimator{
		oracle: oracle,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("estimator"),
	}
}

// Estimate computes the exact total, the average price, and the expected gas
// cost for the candidate set. Oracle failure falls back to the configured
// static gas price instead of failing the preview.
func (e *Estimator) Estimate(ctx context.Context, candidates []marketplace.Listing) Estimate {
	total := new(big.Int)
	for _, c := range candidates {
		total.Add(total, c.Price)
	}

	n := int64(len(candidates))
	avg := new(big.Int)
	if n > 0 {
		avg.Div(total, big.NewInt(n))
	}

	gasUnits := new(big.Int).SetUint64(e.cfg.GasBase + e.cfg.GasPerItem*uint64(n))

	gasPrice, err := e.oracle.GasPrice(ctx)
	if err != nil {
		e.logger.Warn("gas oracle unavailable, using static fallback price",
			zap.String("fallback_wei", e.cfg.FallbackGasPrice.String()),
			zap.Error(err))
		gasPrice = e.cfg.FallbackGasPrice
		gasUnits.SetUint64(e.cfg.GasBase + e.cfg.FallbackGasPerItem*uint64(n))
	}

	gasCost := new(big.Int).Mul(gasUnits, gasPrice)
	return Estimate{
		TotalCost:    total,
		AveragePrice: avg,
		GasEstimate:  gasCost,
		TotalWithGas: new(big.Int).Add(total, gasCost),
	}
}
