package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/config"
	"github.com/temcen/recoengine/internal/database"
	"github.com/temcen/recoengine/internal/messaging"
	"github.com/temcen/recoengine/internal/validation"
)

type Services struct {
	Health         *HealthService
	RateLimit      *RateLimitService
	Events         EventPublisher
	Recommendation *RecommendationService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	schemas, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, err
	}

	rc := cfg.Recommendation
	limits := LimitPolicy{Default: rc.DefaultLimit, Max: rc.MaxLimit}

	decoder := database.NewRecordDecoder(schemas, logger)
	gateway := database.NewPostgresGateway(db.PG, decoder, rc.LookupChunkSize, logger)

	var events EventPublisher
	if publisher := messaging.NewEventPublisher(cfg.Kafka, logger); publisher != nil {
		events = publisher
	}

	metrics := NewRecommendationMetrics(prometheus.DefaultRegisterer, logger)

	ranker := NewPopularityRanker(gateway, limits, logger)
	categories := NewCategoryResolver(gateway, rc.CategoryLookupCap)
	fallback := NewDefaultFallbackChain(categories, ranker, logger)

	orchestrator := NewRecommendationOrchestrator(
		gateway, fallback, ranker, events, metrics,
		OrchestratorConfig{
			PeerLimit:       rc.PeerLimit,
			SimilarUsers:    rc.SimilarUsers,
			OverfetchFactor: rc.OverfetchFactor,
			BlendStrategy:   rc.Blend.Strategy,
			Weights:         BlendWeights{Click: rc.Blend.ClickWeight, Purchase: rc.Blend.PurchaseWeight},
		},
		limits, logger,
	)

	boughtTogether := NewBoughtTogetherAggregator(gateway, ranker, rc.BoughtTogetherCap, limits, logger)
	affinity := NewCategoryAffinityRanker(gateway, categories, ranker, limits, logger)

	nonCritical := map[string]Pinger{}
	if db.Redis != nil {
		nonCritical["redis"] = RedisPinger(db.Redis)
	}
	health := NewHealthService(
		map[string]Pinger{"postgresql": db.PG},
		nonCritical,
		db.PG,
		prometheus.DefaultRegisterer,
		logger,
	)

	return &Services{
		Health:         health,
		RateLimit:      NewRateLimitService(cfg.RateLimit, logger, db.Redis),
		Events:         events,
		Recommendation: NewRecommendationService(orchestrator, ranker, boughtTogether, affinity, metrics),
	}, nil
}

// Close flushes pending events.
func (s *Services) Close() error {
	if s.Events != nil {
		return s.Events.Close()
	}
	return nil
}
