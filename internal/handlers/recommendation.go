package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/config"
	"github.com/temcen/recoengine/internal/services"
	"github.com/temcen/recoengine/pkg/models"
)

const noRecommendationMessage = "No recommendations available for this user"

// LimitPolicies holds the limit rules of /reco_api and of the auxiliary
// product list routes.
type LimitPolicies struct {
	Recommend services.LimitPolicy
	Auxiliary services.LimitPolicy
}

func limitPolicies(rc config.RecommendationConfig) LimitPolicies {
	return LimitPolicies{
		Recommend: services.LimitPolicy{Default: rc.DefaultLimit, Max: rc.MaxLimit},
		Auxiliary: services.LimitPolicy{Default: rc.AuxiliaryLimit, Max: rc.MaxLimit},
	}
}

type RecommendationHandler struct {
	service services.RecommendationServiceInterface
	limits  LimitPolicies
	logger  *logrus.Logger
}

func NewRecommendationHandler(
	service services.RecommendationServiceInterface,
	limits LimitPolicies,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		service: service,
		limits:  limits,
		logger:  logger,
	}
}

func (h *RecommendationHandler) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the product recommendation API",
	})
}

// Recommend serves GET /reco_api/:user_id. An empty list gets one more
// global popularity attempt before the no-recommendation answer.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	limit := h.limits.Recommend.Parse(c.Query("limit"))

	result := h.service.Recommend(ctx, userID, limit)
	products := result.Products
	if len(products) == 0 {
		h.logger.WithField("user_id", userID).Warn("Empty recommendation list, retrying global popularity")
		products = h.service.GlobalPopular(ctx, limit)
	}

	response := models.RecommendationResponse{
		UserID:          userID,
		Recommendations: products,
		Status:          models.StatusSuccess,
	}
	if len(products) == 0 {
		response.Recommendations = []models.Product{}
		response.Status = models.StatusSuccessNoRecommendation
		response.Message = noRecommendationMessage
	}

	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) PopularByCategory(c *gin.Context) {
	category := c.Param("category_name")
	limit := h.limits.Auxiliary.Parse(c.Query("limit"))

	products := h.service.CategoryPopular(c.Request.Context(), category, limit)
	c.JSON(http.StatusOK, models.ProductListResponse{
		Category: category,
		Products: orEmpty(products),
		Status:   models.StatusSuccess,
	})
}

func (h *RecommendationHandler) BoughtTogether(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	limit := h.limits.Auxiliary.Parse(c.Query("limit"))

	products := h.service.BoughtTogether(c.Request.Context(), userID, limit)
	c.JSON(http.StatusOK, models.ProductListResponse{
		UserID:   userID,
		Products: orEmpty(products),
		Status:   models.StatusSuccess,
	})
}

func (h *RecommendationHandler) UserPopular(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	limit := h.limits.Auxiliary.Parse(c.Query("limit"))

	products := h.service.UserPopular(c.Request.Context(), userID, limit)
	c.JSON(http.StatusOK, models.ProductListResponse{
		UserID:   userID,
		Products: orEmpty(products),
		Status:   models.StatusSuccess,
	})
}

func (h *RecommendationHandler) userID(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorBody{
			Error: models.ErrorDetail{
				Code:    "INVALID_USER_ID",
				Message: "User ID is required",
			},
		})
		return "", false
	}
	return userID, true
}

func orEmpty(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}
