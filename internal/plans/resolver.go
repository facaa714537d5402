package plans

import (
	"context"

	"github.com/parley-ai/parley-backend/pkg/db/models"
)

// PriceResolver maps provider price ids onto catalog plans for a fixed
// billing mode. Components that only need the lookup take this instead of
// the whole plan service.
type PriceResolver struct {
	repo Repository
	live bool
}

// NewPriceResolver builds a resolver over the plan repository.
func NewPriceResolver(repo Repository, live bool) *PriceResolver {
	return &PriceResolver{repo: repo, live: live}
}

// GetPlanByPriceID returns the plan carrying the price id in the resolver's
// mode, or nil when no plan matches.
func (r *PriceResolver) GetPlanByPriceID(ctx context.Context, priceID string) (*models.Plan, error) {
	return r.repo.FindPlanByPriceID(ctx, priceID, r.live)
}
