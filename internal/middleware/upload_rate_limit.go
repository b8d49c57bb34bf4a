package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mediavault/backend/internal/config"
)

// uploadsPerConcurrentSlot scales the daily upload ceiling off the
// concurrency limit, so one knob controls both.
const uploadsPerConcurrentSlot = 50

// UploadRateLimit caps uploads per user per day. The window resets at local
// midnight so users can reason about when their quota comes back. Redis
// failures never block an upload.
func UploadRateLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()

		if c.Request.Method != "POST" || !isUploadEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		userIDInterface, exists := c.Get("userID")
		if !exists {
			c.Next()
			return
		}
		userID, ok := userIDInterface.(uuid.UUID)
		if !ok {
			c.Next()
			return
		}

		maxPerDay := cfg.UploadMaxConcurrent * uploadsPerConcurrentSlot
		today := time.Now().Format("2006-01-02")
		key := fmt.Sprintf("upload_limit:%s:%s", userID.String(), today)

		count, err := redisClient.Get(ctx, key).Int()
		if err == redis.Nil {
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			if err := redisClient.Set(ctx, key, 1, midnight.Sub(now)).Err(); err != nil {
				c.Next()
				return
			}
		} else if err != nil {
			c.Next()
			return
		} else if count >= maxPerDay {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "upload_rate_limit_exceeded",
				"message":             "Too many uploads today. Please try again tomorrow.",
				"retry_after_hours":   int(ttl.Hours()),
				"uploads_today":       count,
				"max_uploads_per_day": maxPerDay,
			})
			c.Abort()
			return
		} else {
			redisClient.Incr(ctx, key)
		}

		c.Next()
	}
}

func isUploadEndpoint(path string) bool {
	return path == "/api/v1/assets/upload"
}
