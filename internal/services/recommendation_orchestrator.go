package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/pkg/models"
)

// Pipeline outcomes. Every outcome except OutcomeSuccess is served by the
// fallback chain.
const (
	OutcomeNoUserRecord      = "no_user_record"
	OutcomeInsufficientData  = "insufficient_data"
	OutcomeNoPeers           = "no_peers"
	OutcomeEmptyCandidates   = "empty_candidates"
	OutcomeEmptyDetailLookup = "empty_detail_lookup"
	OutcomeSuccess           = "success"
	OutcomeUnhandledError    = "unhandled_error"
)

const (
	DefaultPeerLimit       = 500
	DefaultOverfetchFactor = 2

	minClicksForSignal    = 1
	minPurchasesForSignal = 0
)

// RecommendationResult is the outcome of one recommendation call. Products
// is never nil.
type RecommendationResult struct {
	UserID   string           `json:"user_id"`
	Products []models.Product `json:"products"`
	Outcome  string           `json:"outcome"`
	Strategy string           `json:"strategy"`
	Limit    int              `json:"limit"`
}

// OrchestratorConfig holds the pipeline bounds and blend settings.
type OrchestratorConfig struct {
	PeerLimit       int
	SimilarUsers    int
	OverfetchFactor int
	BlendStrategy   string
	Weights         BlendWeights
}

// DefaultOrchestratorConfig reads 500 peers, keeps 30 similar users per
// signal and blends clicks and purchases 0.4/0.6.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PeerLimit:       DefaultPeerLimit,
		SimilarUsers:    DefaultSimilarUsers,
		OverfetchFactor: DefaultOverfetchFactor,
		BlendStrategy:   BlendStrategyFixed,
		Weights:         DefaultBlendWeights,
	}
}

// RecommendationOrchestrator runs user-based collaborative filtering over
// click and purchase signals and falls back to popularity when it cannot.
type RecommendationOrchestrator struct {
	gateway   DataGateway
	fallback  *FallbackChain
	ranker    *PopularityRanker
	publisher EventPublisher
	metrics   *RecommendationMetrics
	config    OrchestratorConfig
	limits    LimitPolicy
	logger    *logrus.Logger
}

// NewRecommendationOrchestrator creates an orchestrator. publisher and
// metrics may be nil.
func NewRecommendationOrchestrator(
	gateway DataGateway,
	fallback *FallbackChain,
	ranker *PopularityRanker,
	publisher EventPublisher,
	metrics *RecommendationMetrics,
	config OrchestratorConfig,
	limits LimitPolicy,
	logger *logrus.Logger,
) *RecommendationOrchestrator {
	defaults := DefaultOrchestratorConfig()
	if config.PeerLimit <= 0 {
		config.PeerLimit = defaults.PeerLimit
	}
	if config.SimilarUsers <= 0 {
		config.SimilarUsers = defaults.SimilarUsers
	}
	if config.OverfetchFactor <= 0 {
		config.OverfetchFactor = defaults.OverfetchFactor
	}
	if config.BlendStrategy == "" {
		config.BlendStrategy = defaults.BlendStrategy
	}
	if config.Weights == (BlendWeights{}) {
		config.Weights = defaults.Weights
	}

	return &RecommendationOrchestrator{
		gateway:   gateway,
		fallback:  fallback,
		ranker:    ranker,
		publisher: publisher,
		metrics:   metrics,
		config:    config,
		limits:    limits,
		logger:    logger,
	}
}

// Recommend returns up to limit products for the user. It never fails and
// never panics: when collaborative filtering has nothing to offer the
// fallback chain serves the list, which may be empty.
func (o *RecommendationOrchestrator) Recommend(ctx context.Context, userID string, limit int) *RecommendationResult {
	startTime := time.Now()
	limit = o.limits.Clamp(limit)

	result := o.recommend(ctx, userID, limit)
	result.UserID = userID
	result.Limit = limit
	if result.Products == nil {
		result.Products = []models.Product{}
	}

	elapsed := time.Since(startTime)
	o.metrics.ObserveOutcome(result.Outcome, result.Strategy, len(result.Products), elapsed)
	o.publish(ctx, result)

	o.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"limit":    limit,
		"outcome":  result.Outcome,
		"strategy": result.Strategy,
		"count":    len(result.Products),
		"latency":  elapsed,
	}).Info("Recommendations generated")

	return result
}

func (o *RecommendationOrchestrator) recommend(ctx context.Context, userID string, limit int) (result *RecommendationResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"panic":   r,
			}).Error("Recommendation pipeline panicked")
			result = o.recoverWithFallback(ctx, userID, limit)
		}
	}()

	products, outcome, profile, err := o.collaborative(ctx, userID, limit)
	if err != nil {
		o.logger.WithError(err).WithField("user_id", userID).Error("Recommendation pipeline failed")
		return o.recoverWithFallback(ctx, userID, limit)
	}

	if outcome == OutcomeSuccess {
		return &RecommendationResult{
			Products: products,
			Outcome:  OutcomeSuccess,
			Strategy: StrategyCollaborative,
		}
	}

	o.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"outcome": outcome,
	}).Debug("Collaborative filtering produced nothing, using fallback")

	fallbackProducts, strategy := o.fallback.Run(ctx, fallbackInput(userID, profile, limit))
	return &RecommendationResult{
		Products: fallbackProducts,
		Outcome:  outcome,
		Strategy: strategy,
	}
}

// collaborative runs the pipeline up to the ranked product list. A
// non-success outcome carries whatever profile was read so the fallback can
// use it.
func (o *RecommendationOrchestrator) collaborative(ctx context.Context, userID string, limit int) ([]models.Product, string, *models.UserProfile, error) {
	profile, err := o.gateway.FetchUserProfile(ctx, userID)
	if err != nil {
		return nil, OutcomeUnhandledError, nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	if profile == nil {
		return nil, OutcomeNoUserRecord, nil, nil
	}
	profile = withSets(profile)

	if !hasSufficientData(profile) {
		return nil, OutcomeInsufficientData, profile, nil
	}

	peers, err := o.gateway.FetchOtherUserProfiles(ctx, userID, o.config.PeerLimit)
	if err != nil {
		return nil, OutcomeUnhandledError, profile, fmt.Errorf("failed to fetch peer profiles: %w", err)
	}
	if len(peers) == 0 {
		return nil, OutcomeNoPeers, profile, nil
	}

	clickMap := models.NewInteractionMap()
	purchaseMap := models.NewInteractionMap()
	for _, peer := range peers {
		clickMap.Put(peer.UserID, peer.Clicks)
		purchaseMap.Put(peer.UserID, peer.Purchases)
	}

	clickSimilar := TopSimilarUsers(profile.Clicks, clickMap, userID, o.config.SimilarUsers)
	purchaseSimilar := TopSimilarUsers(profile.Purchases, purchaseMap, userID, o.config.SimilarUsers)

	exclude := profile.Interacted()
	clickCandidates := GenerateCandidates(clickSimilar, clickMap, exclude)
	purchaseCandidates := GenerateCandidates(purchaseSimilar, purchaseMap, exclude)

	ranked := Blend(clickCandidates, purchaseCandidates, o.weights(clickCandidates.Len(), purchaseCandidates.Len()))
	if len(ranked) == 0 {
		return nil, OutcomeEmptyCandidates, profile, nil
	}

	o.logger.WithFields(logrus.Fields{
		"user_id":          userID,
		"peers":            len(peers),
		"click_similar":    len(clickSimilar),
		"purchase_similar": len(purchaseSimilar),
		"candidates":       len(ranked),
	}).Debug("Candidates scored")

	fetchCount := limit * o.config.OverfetchFactor
	if len(ranked) > fetchCount {
		ranked = ranked[:fetchCount]
	}
	rankedIDs := lo.Map(ranked, func(s models.ScoredID, _ int) string { return s.ID })

	details, err := o.gateway.FetchProductsByIDs(ctx, rankedIDs)
	if err != nil {
		return nil, OutcomeUnhandledError, profile, fmt.Errorf("failed to fetch candidate products: %w", err)
	}
	if len(details) == 0 {
		return nil, OutcomeEmptyDetailLookup, profile, nil
	}

	products := orderByRank(rankedIDs, details, limit)
	if len(products) == 0 {
		return nil, OutcomeEmptyCandidates, profile, nil
	}

	return products, OutcomeSuccess, profile, nil
}

func (o *RecommendationOrchestrator) weights(clickCount, purchaseCount int) BlendWeights {
	if o.config.BlendStrategy == BlendStrategyActivityBalanced {
		return ActivityBalancedWeights(clickCount, purchaseCount)
	}
	return o.config.Weights
}

// recoverWithFallback re-reads the profile best-effort and runs the fallback
// chain. If the chain itself blows up, global popularity is the last resort.
func (o *RecommendationOrchestrator) recoverWithFallback(ctx context.Context, userID string, limit int) *RecommendationResult {
	result := &RecommendationResult{
		Products: []models.Product{},
		Outcome:  OutcomeUnhandledError,
	}

	profile := o.refetchProfile(ctx, userID)

	ok := o.guard(userID, "fallback chain", func() {
		result.Products, result.Strategy = o.fallback.Run(ctx, fallbackInput(userID, profile, limit))
	})
	if ok {
		return result
	}

	o.guard(userID, "global popularity", func() {
		result.Products = o.ranker.GlobalPopular(ctx, limit)
		result.Strategy = StrategyGlobalPopularity
	})
	return result
}

func (o *RecommendationOrchestrator) refetchProfile(ctx context.Context, userID string) (profile *models.UserProfile) {
	o.guard(userID, "profile refetch", func() {
		p, err := o.gateway.FetchUserProfile(ctx, userID)
		if err != nil {
			o.logger.WithError(err).WithField("user_id", userID).Warn("Failed to refetch user profile for fallback")
			return
		}
		profile = p
	})
	return profile
}

// guard runs fn and reports whether it returned without panicking.
func (o *RecommendationOrchestrator) guard(userID, stage string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"stage":   stage,
				"panic":   r,
			}).Error("Recovered from panic")
			ok = false
		}
	}()
	fn()
	return true
}

func (o *RecommendationOrchestrator) publish(ctx context.Context, result *RecommendationResult) {
	if o.publisher == nil {
		return
	}

	event := models.RecommendationServedEvent{
		EventID:    uuid.NewString(),
		RequestID:  RequestIDFromContext(ctx),
		UserID:     result.UserID,
		Outcome:    result.Outcome,
		Strategy:   result.Strategy,
		ProductIDs: models.ProductIDs(result.Products),
		Limit:      result.Limit,
		ServedAt:   time.Now().Unix(),
	}

	if err := o.publisher.PublishRecommendationServed(ctx, event); err != nil {
		o.logger.WithError(err).WithField("user_id", result.UserID).Warn("Failed to publish recommendation event")
	}
}

// hasSufficientData accepts a user with at least one click or at least zero
// purchases.
func hasSufficientData(profile *models.UserProfile) bool {
	return profile.Clicks.Cardinality() >= minClicksForSignal ||
		profile.Purchases.Cardinality() >= minPurchasesForSignal
}

// orderByRank arranges fetched products in ranked id order, dropping ids the
// store did not return, and keeps at most limit.
func orderByRank(rankedIDs []string, details []models.Product, limit int) []models.Product {
	byID := lo.KeyBy(details, func(p models.Product) string { return p.ProductID })

	products := make([]models.Product, 0, limit)
	for _, id := range rankedIDs {
		product, ok := byID[id]
		if !ok {
			continue
		}
		products = append(products, product)
		delete(byID, id)
		if len(products) >= limit {
			break
		}
	}
	return products
}

func withSets(profile *models.UserProfile) *models.UserProfile {
	if profile.Clicks == nil {
		profile.Clicks = models.NewIDSet()
	}
	if profile.Purchases == nil {
		profile.Purchases = models.NewIDSet()
	}
	return profile
}

func fallbackInput(userID string, profile *models.UserProfile, limit int) FallbackInput {
	in := FallbackInput{
		UserID:    userID,
		Clicks:    models.NewIDSet(),
		Purchases: models.NewIDSet(),
		Limit:     limit,
	}
	if profile != nil {
		if profile.Clicks != nil {
			in.Clicks = profile.Clicks
		}
		if profile.Purchases != nil {
			in.Purchases = profile.Purchases
		}
	}
	return in
}
