package services

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/temcen/recoengine/pkg/models"
)

// DataGateway is the read-only view of the user and product store that the
// recommendation engine consumes.
type DataGateway interface {
	// FetchUserProfile returns nil and no error when the user has no record.
	FetchUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	FetchOtherUserProfiles(ctx context.Context, excludingUserID string, maxRows int) ([]models.UserProfile, error)
	// FetchProductsByIDs does not guarantee any result order.
	FetchProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	FetchProductsByCategory(ctx context.Context, category string, limit int) ([]models.Product, error)
	FetchProductsByCategories(ctx context.Context, categories []string, limit int) ([]models.Product, error)
	FetchGlobalPopular(ctx context.Context, limit int) ([]models.Product, error)
	FetchBoughtTogether(ctx context.Context, productID string) (mapset.Set[string], error)
	FetchCategoriesForProducts(ctx context.Context, ids []string) ([]string, error)
}

// EventPublisher ships recommendation events to downstream consumers.
type EventPublisher interface {
	PublishRecommendationServed(ctx context.Context, event models.RecommendationServedEvent) error
	Close() error
}

// RecommendationServiceInterface is what the HTTP handlers depend on.
type RecommendationServiceInterface interface {
	Recommend(ctx context.Context, userID string, limit int) *RecommendationResult
	GlobalPopular(ctx context.Context, limit int) []models.Product
	CategoryPopular(ctx context.Context, category string, limit int) []models.Product
	BoughtTogether(ctx context.Context, userID string, limit int) []models.Product
	UserPopular(ctx context.Context, userID string, limit int) []models.Product
}
