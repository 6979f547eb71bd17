// pkg/credit/chain.go
package credit

import (
	"context"
	"log"
	"time"
)

// ChainEstimator tries a primary estimator and substitutes the fallback
// on any error. Estimation never fails from the caller's point of view.
type ChainEstimator struct {
	primary  Estimator
	fallback Estimator
	timeout  time.Duration
}

// NewChain builds the estimation chain. primary may be nil, in which case
// the fallback is used directly (AI path disabled). timeout bounds the
// primary call; zero means no extra bound beyond the caller's context.
func NewChain(primary, fallback Estimator, timeout time.Duration) *ChainEstimator {
	return &ChainEstimator{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
}

// Estimate returns the primary result when it succeeds, otherwise the
// fallback result. Primary failures are logged, never surfaced.
func (c *ChainEstimator) Estimate(ctx context.Context, in EstimationInput) (Breakdown, error) {
	if err := in.Validate(); err != nil {
		return Breakdown{}, err
	}

	if c.primary != nil {
		pctx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		breakdown, err := c.primary.Estimate(pctx, in)
		if err == nil {
			return breakdown, nil
		}
		log.Printf("credit estimation falling back to formula: %v", err)
	}

	return c.fallback.Estimate(ctx, in)
}
