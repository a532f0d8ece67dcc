package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/config"
	"github.com/temcen/recoengine/pkg/models"
)

// RateLimitService is a Redis sliding-window limiter keyed by client. A nil
// Redis client or a Redis failure lets every request through.
type RateLimitService struct {
	config      config.RateLimitConfig
	logger      *logrus.Logger
	redisClient *redis.Client
}

func NewRateLimitService(cfg config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
	}
}

// Enabled reports whether requests are actually being counted.
func (s *RateLimitService) Enabled() bool {
	return s != nil && s.config.Enabled && s.redisClient != nil
}

func (s *RateLimitService) CheckLimit(ctx context.Context, clientKey string) *models.RateLimitInfo {
	limit := s.config.Requests
	window := s.config.Window
	if window <= 0 {
		window = time.Minute
	}

	now := time.Now()
	resetTime := now.Add(window).Unix()

	if !s.Enabled() {
		return &models.RateLimitInfo{Limit: limit, Remaining: limit, ResetTime: resetTime}
	}

	key := fmt.Sprintf("rate_limit:client:%s", clientKey)
	windowStart := now.Add(-window)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to execute rate limit pipeline, allowing request")
		return &models.RateLimitInfo{Limit: limit, Remaining: limit, ResetTime: resetTime}
	}

	remaining := limit - int(countCmd.Val())
	if remaining < 0 {
		remaining = 0
	}

	return &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
}

// IsAllowed counts the request and reports whether it is within the limit.
func (s *RateLimitService) IsAllowed(ctx context.Context, clientKey string) (bool, *models.RateLimitInfo) {
	info := s.CheckLimit(ctx, clientKey)
	return info.Remaining > 0, info
}
