package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/config"
	"github.com/temcen/recoengine/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Metrics        *MetricsHandler
}

func New(cfg *config.Config, logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Recommendation: NewRecommendationHandler(services.Recommendation, limitPolicies(cfg.Recommendation), logger),
		Metrics:        NewMetricsHandler(nil),
	}
}
