package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/recoengine/pkg/models"
)

// PopularityRanker serves best-selling products, overall or per category.
type PopularityRanker struct {
	gateway DataGateway
	limits  LimitPolicy
	logger  *logrus.Logger
}

func NewPopularityRanker(gateway DataGateway, limits LimitPolicy, logger *logrus.Logger) *PopularityRanker {
	return &PopularityRanker{
		gateway: gateway,
		limits:  limits,
		logger:  logger,
	}
}

// GlobalPopular returns products by total sales, highest first. A store
// failure yields an empty list.
func (r *PopularityRanker) GlobalPopular(ctx context.Context, limit int) []models.Product {
	limit = r.limits.Clamp(limit)

	products, err := r.gateway.FetchGlobalPopular(ctx, limit)
	if err != nil {
		r.logger.WithError(err).WithField("limit", limit).Error("Failed to fetch popular products")
		return []models.Product{}
	}
	if len(products) > limit {
		products = products[:limit]
	}
	if products == nil {
		products = []models.Product{}
	}
	return products
}

// ByCategory returns the best sellers of one category without any fallback.
// The name is matched as given first; when that finds nothing its
// normalized spelling is tried.
func (r *PopularityRanker) ByCategory(ctx context.Context, category string, limit int) ([]models.Product, error) {
	normalized := NormalizeCategory(category)
	if normalized == "" {
		return nil, nil
	}
	limit = r.limits.Clamp(limit)

	products, err := r.gateway.FetchProductsByCategory(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 && normalized != category {
		products, err = r.gateway.FetchProductsByCategory(ctx, normalized, limit)
		if err != nil {
			return nil, err
		}
	}
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// CategoryPopular is ByCategory that falls back to GlobalPopular when the
// category is blank, empty or cannot be read.
func (r *PopularityRanker) CategoryPopular(ctx context.Context, category string, limit int) []models.Product {
	products, err := r.ByCategory(ctx, category, limit)
	if err != nil {
		r.logger.WithError(err).WithField("category", category).Warn("Category lookup failed, using global popularity")
		return r.GlobalPopular(ctx, limit)
	}
	if len(products) == 0 {
		r.logger.WithField("category", category).Debug("No products in category, using global popularity")
		return r.GlobalPopular(ctx, limit)
	}
	return products
}

// NormalizeCategory trims a category name and puts it in Unicode NFC so
// that composed and decomposed spellings compare equal.
func NormalizeCategory(category string) string {
	return norm.NFC.String(strings.TrimSpace(category))
}
