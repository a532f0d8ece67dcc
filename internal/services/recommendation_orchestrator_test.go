package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/recoengine/pkg/models"
)

type orchestratorOption func(*orchestratorDeps)

type orchestratorDeps struct {
	publisher EventPublisher
	metrics   *RecommendationMetrics
	config    OrchestratorConfig
}

func withPublisher(p EventPublisher) orchestratorOption {
	return func(d *orchestratorDeps) { d.publisher = p }
}

func withMetrics(m *RecommendationMetrics) orchestratorOption {
	return func(d *orchestratorDeps) { d.metrics = m }
}

func withBlendStrategy(strategy string) orchestratorOption {
	return func(d *orchestratorDeps) { d.config.BlendStrategy = strategy }
}

func newOrchestrator(gw DataGateway, opts ...orchestratorOption) *RecommendationOrchestrator {
	deps := &orchestratorDeps{config: DefaultOrchestratorConfig()}
	for _, opt := range opts {
		opt(deps)
	}

	logger := testLogger()
	ranker := NewPopularityRanker(gw, DefaultLimitPolicy, logger)
	fallback := NewDefaultFallbackChain(NewCategoryResolver(gw, DefaultCategoryLookupCap), ranker, logger)
	return NewRecommendationOrchestrator(gw, fallback, ranker, deps.publisher, deps.metrics, deps.config, DefaultLimitPolicy, logger)
}

// purchaseScenario: U bought p5 and clicked p1. V bought p5 and p6, W bought
// p7 and X clicked p1 and p9.
func purchaseScenario() *memoryGateway {
	return newMemoryGateway().
		withUser("u", []string{"p1"}, []string{"p5"}).
		withUser("v", nil, []string{"p5", "p6"}).
		withUser("w", nil, []string{"p7"}).
		withUser("x", []string{"p1", "p9"}, nil).
		withProduct("p9", "hats", 5).
		withProduct("p7", "socks", 900).
		withProduct("p6", "shoes", 10).
		withProduct("p5", "shoes", 20).
		withProduct("p1", "hats", 30)
}

func TestRecommend_PurchaseSignalOutranksClicks(t *testing.T) {
	gw := purchaseScenario()

	result := newOrchestrator(gw).Recommend(context.Background(), "u", 15)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, StrategyCollaborative, result.Strategy)
	// p6 scores 0.6*0.5, p9 scores 0.4*0.5
	assert.Equal(t, []string{"p6", "p9"}, productIDs(result.Products))
	assert.NotContains(t, productIDs(result.Products), "p7", "zero-similarity peers contribute nothing")
}

func TestRecommend_CandidatesExcludeOwnInteractions(t *testing.T) {
	gw := purchaseScenario()

	result := newOrchestrator(gw).Recommend(context.Background(), "u", 15)

	for _, id := range productIDs(result.Products) {
		assert.NotContains(t, []string{"p1", "p5"}, id)
	}
}

func TestRecommend_OverfetchAndTruncate(t *testing.T) {
	gw := purchaseScenario()

	result := newOrchestrator(gw).Recommend(context.Background(), "u", 1)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, []string{"p6"}, productIDs(result.Products))
	assert.Equal(t, 1, result.Limit)
}

func TestRecommend_ActivityBalancedStrategy(t *testing.T) {
	gw := purchaseScenario()

	result := newOrchestrator(gw, withBlendStrategy(BlendStrategyActivityBalanced)).Recommend(context.Background(), "u", 15)

	// two candidates in total, so both pools weigh 0.5 and the click pool wins the tie
	assert.Equal(t, []string{"p9", "p6"}, productIDs(result.Products))
}

func TestRecommend_NoSimilarPeersServesGlobalPopularity(t *testing.T) {
	gw := newMemoryGateway().
		withUser("u1", []string{"p1", "p2"}, nil).
		withUser("v", []string{"p3"}, []string{"p4"}).
		withProduct("p3", "bags", 40).
		withProduct("p4", "bags", 90).
		withProduct("p8", "hats", 60)

	orchestrator := newOrchestrator(gw)
	result := orchestrator.Recommend(context.Background(), "u1", 15)

	assert.Equal(t, OutcomeEmptyCandidates, result.Outcome)
	assert.Equal(t, StrategyGlobalPopularity, result.Strategy)
	assert.Equal(t, productIDs(orchestrator.ranker.GlobalPopular(context.Background(), 15)), productIDs(result.Products))
	assert.Equal(t, []string{"p4", "p8", "p3"}, productIDs(result.Products))
}

func TestRecommend_NoPeers(t *testing.T) {
	gw := newMemoryGateway().
		withUser("u1", []string{"p1"}, nil).
		withProduct("p1", "shoes", 10).
		withProduct("p2", "shoes", 20).
		withProduct("p3", "bags", 99)

	result := newOrchestrator(gw).Recommend(context.Background(), "u1", 15)

	assert.Equal(t, OutcomeNoPeers, result.Outcome)
	assert.Equal(t, StrategyCategoryPopularity, result.Strategy)
	assert.Equal(t, []string{"p2", "p1"}, productIDs(result.Products))
}

func TestRecommend_NoUserRecord(t *testing.T) {
	gw := catalog()

	result := newOrchestrator(gw).Recommend(context.Background(), "ghost", 2)

	assert.Equal(t, OutcomeNoUserRecord, result.Outcome)
	assert.Equal(t, StrategyGlobalPopularity, result.Strategy)
	assert.Equal(t, []string{"p2", "p3"}, productIDs(result.Products))
	assert.Zero(t, gw.calls["FetchOtherUserProfiles"])
}

func TestRecommend_EmptyProfileIsStillSufficient(t *testing.T) {
	gw := catalog().
		withUser("u1", nil, nil).
		withUser("v", []string{"p1"}, nil)

	result := newOrchestrator(gw).Recommend(context.Background(), "u1", 2)

	// zero purchases satisfy the purchase threshold, so peers are still read
	assert.Equal(t, OutcomeEmptyCandidates, result.Outcome)
	assert.Equal(t, 1, gw.calls["FetchOtherUserProfiles"])
	assert.Equal(t, []string{"p2", "p3"}, productIDs(result.Products))
}

func TestRecommend_EmptyDetailLookup(t *testing.T) {
	gw := newMemoryGateway().
		withUser("u", nil, []string{"p5"}).
		withUser("v", nil, []string{"p5", "p6"}).
		withProduct("p5", "shoes", 20).
		withProduct("p4", "shoes", 70).
		withProduct("p3", "bags", 500)

	result := newOrchestrator(gw).Recommend(context.Background(), "u", 15)

	assert.Equal(t, OutcomeEmptyDetailLookup, result.Outcome)
	assert.Equal(t, StrategyCategoryPopularity, result.Strategy)
	assert.Equal(t, []string{"p4", "p5"}, productIDs(result.Products))
}

func TestRecommend_StoreFailureUsesFallback(t *testing.T) {
	gw := purchaseScenario()
	gw.errs["FetchOtherUserProfiles"] = errors.New("connection reset")

	result := newOrchestrator(gw).Recommend(context.Background(), "u", 15)

	assert.Equal(t, OutcomeUnhandledError, result.Outcome)
	assert.Equal(t, StrategyCategoryPopularity, result.Strategy)
	assert.NotEmpty(t, result.Products)
	// profile is read once by the pipeline and once more for the fallback
	assert.Equal(t, 2, gw.calls["FetchUserProfile"])
}

func TestRecommend_NeverPanics(t *testing.T) {
	t.Run("panic in the pipeline", func(t *testing.T) {
		gw := purchaseScenario()
		gw.panics["FetchProductsByIDs"] = true

		var result *RecommendationResult
		require.NotPanics(t, func() {
			result = newOrchestrator(gw).Recommend(context.Background(), "u", 15)
		})
		assert.Equal(t, OutcomeUnhandledError, result.Outcome)
		assert.NotEmpty(t, result.Products)
	})

	t.Run("every read panics", func(t *testing.T) {
		gw := purchaseScenario()
		for _, method := range []string{
			"FetchUserProfile", "FetchOtherUserProfiles", "FetchProductsByIDs",
			"FetchProductsByCategory", "FetchGlobalPopular", "FetchCategoriesForProducts",
		} {
			gw.panics[method] = true
		}

		var result *RecommendationResult
		require.NotPanics(t, func() {
			result = newOrchestrator(gw).Recommend(context.Background(), "u", 15)
		})
		assert.Equal(t, OutcomeUnhandledError, result.Outcome)
		assert.NotNil(t, result.Products)
		assert.Empty(t, result.Products)
	})

	t.Run("every read fails", func(t *testing.T) {
		gw := purchaseScenario()
		for _, method := range []string{
			"FetchUserProfile", "FetchOtherUserProfiles", "FetchProductsByIDs",
			"FetchProductsByCategory", "FetchGlobalPopular", "FetchCategoriesForProducts",
		} {
			gw.errs[method] = errors.New("store unreachable")
		}

		result := newOrchestrator(gw).Recommend(context.Background(), "u", 15)
		assert.Equal(t, OutcomeUnhandledError, result.Outcome)
		assert.NotNil(t, result.Products)
		assert.Empty(t, result.Products)
	})
}

func TestRecommend_ClampsLimit(t *testing.T) {
	gw := catalog()
	orchestrator := newOrchestrator(gw)

	assert.Equal(t, MaxLimit, orchestrator.Recommend(context.Background(), "ghost", 500).Limit)
	assert.Equal(t, MinLimit, orchestrator.Recommend(context.Background(), "ghost", -1).Limit)
}

func TestRecommend_PublishesEvent(t *testing.T) {
	gw := purchaseScenario()
	publisher := &MockEventPublisher{}
	publisher.On("PublishRecommendationServed", mock.Anything, mock.MatchedBy(func(e models.RecommendationServedEvent) bool {
		return e.UserID == "u" &&
			e.RequestID == "req-42" &&
			e.EventID != "" &&
			e.Outcome == OutcomeSuccess &&
			e.Strategy == StrategyCollaborative &&
			e.Limit == 15 &&
			assert.ObjectsAreEqual([]string{"p6", "p9"}, e.ProductIDs)
	})).Return(nil).Once()

	ctx := WithRequestID(context.Background(), "req-42")
	newOrchestrator(gw, withPublisher(publisher)).Recommend(ctx, "u", 15)

	publisher.AssertExpectations(t)
}

func TestRecommend_PublishFailureIsIgnored(t *testing.T) {
	gw := purchaseScenario()
	publisher := &MockEventPublisher{}
	publisher.On("PublishRecommendationServed", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	result := newOrchestrator(gw, withPublisher(publisher)).Recommend(context.Background(), "u", 15)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	publisher.AssertNumberOfCalls(t, "PublishRecommendationServed", 1)
}

func TestRecommend_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRecommendationMetrics(reg, testLogger())

	orchestrator := newOrchestrator(purchaseScenario(), withMetrics(metrics))
	orchestrator.Recommend(context.Background(), "u", 15)
	orchestrator.Recommend(context.Background(), "ghost", 15)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues(OutcomeNoUserRecord)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues(StrategyGlobalPopularity)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues(StrategyCollaborative)))
}

func TestNewRecommendationMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewRecommendationMetrics(reg, testLogger())
	second := NewRecommendationMetrics(reg, testLogger())

	second.ObserveOutcome(OutcomeSuccess, StrategyCollaborative, 3, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.outcomes.WithLabelValues(OutcomeSuccess)))
}
