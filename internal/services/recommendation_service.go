package services

import (
	"context"
	"time"

	"github.com/temcen/recoengine/pkg/models"
)

// RecommendationService groups the recommenders behind the HTTP API.
type RecommendationService struct {
	orchestrator   *RecommendationOrchestrator
	ranker         *PopularityRanker
	boughtTogether *BoughtTogetherAggregator
	affinity       *CategoryAffinityRanker
	metrics        *RecommendationMetrics
}

func NewRecommendationService(
	orchestrator *RecommendationOrchestrator,
	ranker *PopularityRanker,
	boughtTogether *BoughtTogetherAggregator,
	affinity *CategoryAffinityRanker,
	metrics *RecommendationMetrics,
) *RecommendationService {
	return &RecommendationService{
		orchestrator:   orchestrator,
		ranker:         ranker,
		boughtTogether: boughtTogether,
		affinity:       affinity,
		metrics:        metrics,
	}
}

func (s *RecommendationService) Recommend(ctx context.Context, userID string, limit int) *RecommendationResult {
	return s.orchestrator.Recommend(ctx, userID, limit)
}

func (s *RecommendationService) GlobalPopular(ctx context.Context, limit int) []models.Product {
	defer s.observe("global_popular", time.Now())
	return s.ranker.GlobalPopular(ctx, limit)
}

func (s *RecommendationService) CategoryPopular(ctx context.Context, category string, limit int) []models.Product {
	defer s.observe("category_popular", time.Now())
	return s.ranker.CategoryPopular(ctx, category, limit)
}

func (s *RecommendationService) BoughtTogether(ctx context.Context, userID string, limit int) []models.Product {
	defer s.observe("bought_together", time.Now())
	return s.boughtTogether.BoughtTogether(ctx, userID, limit)
}

func (s *RecommendationService) UserPopular(ctx context.Context, userID string, limit int) []models.Product {
	defer s.observe("user_popular", time.Now())
	return s.affinity.UserPopular(ctx, userID, limit)
}

func (s *RecommendationService) observe(operation string, start time.Time) {
	s.metrics.ObserveDuration(operation, time.Since(start))
}
