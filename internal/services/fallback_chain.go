package services

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/pkg/models"
)

const (
	StrategyCollaborative      = "collaborative"
	StrategyCategoryPopularity = "category_popularity"
	StrategyGlobalPopularity   = "global_popularity"
)

// FallbackInput carries whatever interaction data is known about the user.
// Either set may be empty.
type FallbackInput struct {
	UserID    string
	Clicks    mapset.Set[string]
	Purchases mapset.Set[string]
	Limit     int
}

func (in FallbackInput) interacted() mapset.Set[string] {
	ids := models.NewIDSet()
	if in.Clicks != nil {
		ids = ids.Union(in.Clicks)
	}
	if in.Purchases != nil {
		ids = ids.Union(in.Purchases)
	}
	return ids
}

// FallbackStrategy is one step of the fallback chain. An empty result or an
// error hands over to the next step.
type FallbackStrategy interface {
	Name() string
	Recommend(ctx context.Context, in FallbackInput) ([]models.Product, error)
}

// FallbackChain tries its strategies in order and serves the first
// non-empty result.
type FallbackChain struct {
	strategies []FallbackStrategy
	logger     *logrus.Logger
}

func NewFallbackChain(logger *logrus.Logger, strategies ...FallbackStrategy) *FallbackChain {
	return &FallbackChain{
		strategies: strategies,
		logger:     logger,
	}
}

// NewDefaultFallbackChain builds category popularity followed by global
// popularity.
func NewDefaultFallbackChain(categories *CategoryResolver, ranker *PopularityRanker, logger *logrus.Logger) *FallbackChain {
	return NewFallbackChain(logger,
		&CategoryPopularityStrategy{categories: categories, ranker: ranker},
		&GlobalPopularityStrategy{ranker: ranker},
	)
}

// Run returns the products of the first strategy with a non-empty result
// and that strategy's name. When every strategy comes up empty it returns an
// empty list and an empty name.
func (c *FallbackChain) Run(ctx context.Context, in FallbackInput) ([]models.Product, string) {
	for _, strategy := range c.strategies {
		products, err := strategy.Recommend(ctx, in)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":  in.UserID,
				"strategy": strategy.Name(),
			}).Warn("Fallback strategy failed")
			continue
		}
		if len(products) > 0 {
			c.logger.WithFields(logrus.Fields{
				"user_id":  in.UserID,
				"strategy": strategy.Name(),
				"count":    len(products),
			}).Debug("Fallback strategy served recommendations")
			return products, strategy.Name()
		}
	}

	return []models.Product{}, ""
}

// CategoryPopularityStrategy serves the best sellers of the first category
// among the user's interacted products.
type CategoryPopularityStrategy struct {
	categories *CategoryResolver
	ranker     *PopularityRanker
}

func (s *CategoryPopularityStrategy) Name() string {
	return StrategyCategoryPopularity
}

func (s *CategoryPopularityStrategy) Recommend(ctx context.Context, in FallbackInput) ([]models.Product, error) {
	ids := in.interacted()
	if ids.Cardinality() == 0 {
		return nil, nil
	}

	categories, err := s.categories.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}

	return s.ranker.ByCategory(ctx, categories[0], in.Limit)
}

// GlobalPopularityStrategy serves the overall best sellers.
type GlobalPopularityStrategy struct {
	ranker *PopularityRanker
}

func (s *GlobalPopularityStrategy) Name() string {
	return StrategyGlobalPopularity
}

func (s *GlobalPopularityStrategy) Recommend(ctx context.Context, in FallbackInput) ([]models.Product, error) {
	return s.ranker.GlobalPopular(ctx, in.Limit), nil
}
