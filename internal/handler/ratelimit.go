package handler

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyworld/internal/config"
)

// NewRateLimiter limits requests per client IP. Counters live in Redis when
// client is non-nil and in process memory otherwise. A zero limit returns nil.
func NewRateLimiter(cfg config.RateLimitConfig, client redis.UniversalClient, logger *zap.Logger) gin.HandlerFunc {
	if cfg.Limit == 0 {
		return nil
	}

	var store ratelimit.Store
	if client != nil {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: client.(*redis.Client),
			Rate:        cfg.Window,
			Limit:       cfg.Limit,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  cfg.Window,
			Limit: cfg.Limit,
		})
	}

	logger = logger.Named("RateLimiter")
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			logger.Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, APIError{
				Message: "Too many requests. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
				Kind:    "rate_limited",
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
