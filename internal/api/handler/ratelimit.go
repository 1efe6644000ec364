package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimit caps each client at maxRequests per fixed window using a Redis
// counter. Authenticated callers are keyed by user id, others by IP.
func RateLimit(rdb *redis.Client, maxRequests int, window time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	if rdb == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 || window <= 0 {
		panic("RateLimit middleware needs a positive limit and window")
	}
	log := logger.WithField("component", "ratelimit")

	return func(c *gin.Context) {
		key := "ratelimit:ip:" + c.ClientIP()
		if userID := c.GetString(contextUserID); userID != "" {
			key = "ratelimit:user:" + userID
		}

		ctx := c.Request.Context()
		pipe := rdb.Pipeline()
		incr := pipe.Incr(ctx, key)
		ttl := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			log.WithError(err).Error("RateLimit: Redis pipeline failed")
			ErrorResponse(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
			return
		}

		// вікно фіксоване: TTL ставиться лише лічильнику, що його ще не має
		retryAfter := ttl.Val()
		if retryAfter < 0 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				log.WithError(err).Error("RateLimit: failed to set window expiry")
				ErrorResponse(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
				return
			}
			retryAfter = window
		}

		count := incr.Val()
		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(maxRequests) {
			log.WithField("key", key).Warn("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			ErrorResponse(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
