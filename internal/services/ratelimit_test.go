package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/temcen/recoengine/internal/config"
)

func TestRateLimitService_Disabled(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: false, Requests: 10, Window: time.Minute}
	service := NewRateLimitService(cfg, testLogger(), nil)

	assert.False(t, service.Enabled())

	allowed, info := service.IsAllowed(context.Background(), "10.0.0.1")
	assert.True(t, allowed)
	assert.Equal(t, 10, info.Limit)
	assert.Equal(t, 10, info.Remaining)
	assert.Greater(t, info.ResetTime, time.Now().Unix())
}

func TestRateLimitService_EnabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Requests: 1}
	service := NewRateLimitService(cfg, testLogger(), nil)

	assert.False(t, service.Enabled())
	allowed, _ := service.IsAllowed(context.Background(), "10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimitService_RedisFailureAllowsRequest(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cfg := config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Second}
	service := NewRateLimitService(cfg, testLogger(), client)

	assert.True(t, service.Enabled())
	for i := 0; i < 3; i++ {
		allowed, info := service.IsAllowed(context.Background(), "10.0.0.1")
		assert.True(t, allowed)
		assert.Equal(t, 1, info.Remaining)
	}
}
