package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
	"golang.org/x/time/rate"
)

// RateLimitedCatalog spaces out searches against a wrapped [Catalog].
//
// One limiter is shared by every caller, so concurrent batch workers stay under the
// catalog's request budget together.
type RateLimitedCatalog struct {
	catalog Catalog
	limiter *rate.Limiter
}

// NewRateLimitedCatalog wraps catalog with a limiter of perSecond requests and the given burst.
// A non-positive rate disables limiting.
func NewRateLimitedCatalog(catalog Catalog, perSecond float64, burst int) *RateLimitedCatalog {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimitedCatalog{catalog: catalog, limiter: rate.NewLimiter(limit, max(burst, 1))}
}

// Search waits for a token, then delegates.
func (r *RateLimitedCatalog) Search(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRateLimited, err)
	}
	return r.catalog.Search(ctx, query, limit)
}
