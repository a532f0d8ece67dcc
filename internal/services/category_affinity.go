package services

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/pkg/models"
)

// DefaultCategoryLookupCap bounds how many product ids are used to derive
// a user's categories.
const DefaultCategoryLookupCap = 50

// CategoryResolver maps a set of product ids to their category names.
type CategoryResolver struct {
	gateway   DataGateway
	lookupCap int
}

func NewCategoryResolver(gateway DataGateway, lookupCap int) *CategoryResolver {
	if lookupCap <= 0 {
		lookupCap = DefaultCategoryLookupCap
	}
	return &CategoryResolver{gateway: gateway, lookupCap: lookupCap}
}

// Resolve looks up the categories of the first lookupCap ids in sorted order.
// Names keep their stored spelling. Blank names are dropped and names that
// only differ by whitespace or Unicode form collapse to the first one seen.
func (r *CategoryResolver) Resolve(ctx context.Context, ids mapset.Set[string]) ([]string, error) {
	if ids == nil || ids.Cardinality() == 0 {
		return nil, nil
	}

	sorted := mapset.Sorted(ids)
	if len(sorted) > r.lookupCap {
		sorted = sorted[:r.lookupCap]
	}

	categories, err := r.gateway.FetchCategoriesForProducts(ctx, sorted)
	if err != nil {
		return nil, err
	}

	categories = lo.Filter(categories, func(c string, _ int) bool { return NormalizeCategory(c) != "" })
	return lo.UniqBy(categories, NormalizeCategory), nil
}

// CategoryAffinityRanker recommends best sellers from the categories a user
// has bought from, or clicked on when they have no purchases.
type CategoryAffinityRanker struct {
	gateway    DataGateway
	categories *CategoryResolver
	ranker     *PopularityRanker
	limits     LimitPolicy
	logger     *logrus.Logger
}

func NewCategoryAffinityRanker(
	gateway DataGateway,
	categories *CategoryResolver,
	ranker *PopularityRanker,
	limits LimitPolicy,
	logger *logrus.Logger,
) *CategoryAffinityRanker {
	return &CategoryAffinityRanker{
		gateway:    gateway,
		categories: categories,
		ranker:     ranker,
		limits:     limits,
		logger:     logger,
	}
}

// UserPopular never fails: any empty stage or store error ends in global
// popularity.
func (r *CategoryAffinityRanker) UserPopular(ctx context.Context, userID string, limit int) []models.Product {
	limit = r.limits.Clamp(limit)
	log := r.logger.WithField("user_id", userID)

	if userID == "" {
		return r.ranker.GlobalPopular(ctx, limit)
	}

	profile, err := r.gateway.FetchUserProfile(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch user for category affinity")
		return r.ranker.GlobalPopular(ctx, limit)
	}
	if profile == nil {
		log.Debug("User not found, using global popularity")
		return r.ranker.GlobalPopular(ctx, limit)
	}

	ids := profile.Purchases
	if ids == nil || ids.Cardinality() == 0 {
		ids = profile.Clicks
	}
	if ids == nil || ids.Cardinality() == 0 {
		log.Debug("User has no interacted products, using global popularity")
		return r.ranker.GlobalPopular(ctx, limit)
	}

	categories, err := r.categories.Resolve(ctx, ids)
	if err != nil {
		log.WithError(err).Warn("Failed to resolve user categories")
		return r.ranker.GlobalPopular(ctx, limit)
	}
	if len(categories) == 0 {
		log.Debug("No categories for interacted products, using global popularity")
		return r.ranker.GlobalPopular(ctx, limit)
	}

	products, err := r.gateway.FetchProductsByCategories(ctx, categories, limit)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch products for user categories")
		return r.ranker.GlobalPopular(ctx, limit)
	}
	if len(products) == 0 {
		return r.ranker.GlobalPopular(ctx, limit)
	}
	if len(products) > limit {
		products = products[:limit]
	}

	log.WithFields(logrus.Fields{
		"categories": len(categories),
		"count":      len(products),
	}).Debug("Category affinity recommendations served")
	return products
}
