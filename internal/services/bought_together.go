package services

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/pkg/models"
)

// DefaultBoughtTogetherCap bounds the per-product co-purchase lookups made
// for one user.
const DefaultBoughtTogetherCap = 20

// BoughtTogetherAggregator recommends products frequently bought with the
// ones a user clicked.
type BoughtTogetherAggregator struct {
	gateway   DataGateway
	ranker    *PopularityRanker
	lookupCap int
	limits    LimitPolicy
	logger    *logrus.Logger
}

func NewBoughtTogetherAggregator(gateway DataGateway, ranker *PopularityRanker, lookupCap int, limits LimitPolicy, logger *logrus.Logger) *BoughtTogetherAggregator {
	if lookupCap <= 0 {
		lookupCap = DefaultBoughtTogetherCap
	}
	return &BoughtTogetherAggregator{
		gateway:   gateway,
		ranker:    ranker,
		lookupCap: lookupCap,
		limits:    limits,
		logger:    logger,
	}
}

// BoughtTogether unions the co-purchase lists of the user's clicked products,
// drops what the user already clicked and returns those products. Any empty
// stage or store error ends in global popularity.
func (a *BoughtTogetherAggregator) BoughtTogether(ctx context.Context, userID string, limit int) []models.Product {
	limit = a.limits.Clamp(limit)
	log := a.logger.WithField("user_id", userID)

	if userID == "" {
		return a.ranker.GlobalPopular(ctx, limit)
	}

	profile, err := a.gateway.FetchUserProfile(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch user for bought-together")
		return a.ranker.GlobalPopular(ctx, limit)
	}
	if profile == nil || profile.Clicks == nil || profile.Clicks.Cardinality() == 0 {
		log.Debug("No clicked products, using global popularity")
		return a.ranker.GlobalPopular(ctx, limit)
	}

	together, err := a.coPurchased(ctx, profile.Clicks)
	if err != nil {
		log.WithError(err).Warn("Failed to read co-purchase lists")
		return a.ranker.GlobalPopular(ctx, limit)
	}
	if together.Cardinality() == 0 {
		log.Debug("No co-purchased products, using global popularity")
		return a.ranker.GlobalPopular(ctx, limit)
	}

	remaining := together.Difference(profile.Clicks)
	if remaining.Cardinality() == 0 {
		log.Debug("Co-purchased products all clicked already, using global popularity")
		return a.ranker.GlobalPopular(ctx, limit)
	}

	products, err := a.gateway.FetchProductsByIDs(ctx, mapset.Sorted(remaining))
	if err != nil {
		log.WithError(err).Warn("Failed to fetch co-purchased products")
		return a.ranker.GlobalPopular(ctx, limit)
	}
	if len(products) == 0 {
		return a.ranker.GlobalPopular(ctx, limit)
	}
	if len(products) > limit {
		products = products[:limit]
	}
	return products
}

func (a *BoughtTogetherAggregator) coPurchased(ctx context.Context, clicks mapset.Set[string]) (mapset.Set[string], error) {
	ids := mapset.Sorted(clicks)
	if len(ids) > a.lookupCap {
		ids = ids[:a.lookupCap]
	}

	together := models.NewIDSet()
	for _, productID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		related, err := a.gateway.FetchBoughtTogether(ctx, productID)
		if err != nil {
			return nil, err
		}
		if related != nil {
			together = together.Union(related)
		}
	}
	return together, nil
}
