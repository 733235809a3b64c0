package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Allower is the bucket operation the middleware needs; split out so the
// middleware can be tested without a redis server.
type Allower interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

// PublicLimiter throttles unauthenticated endpoints per client IP.
type PublicLimiter struct {
	bucket Allower
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewPublicLimiter(bucket Allower, rate float64, burst int, log *zap.Logger) *PublicLimiter {
	return &PublicLimiter{
		bucket: bucket,
		rate:   rate,
		burst:  burst,
		log:    log.Named("ratelimit"),
	}
}

// Middleware enforces the bucket. A limiter that is nil or has no backing
// store passes everything through, and so does a redis failure: losing rate
// limiting briefly is better than rejecting legitimate traffic.
func (l *PublicLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.bucket == nil {
			c.Next()
			return
		}

		key := "ratelimit:public:" + c.ClientIP()
		res, err := l.bucket.Allow(c.Request.Context(), key, l.rate, l.burst)
		if err != nil {
			l.log.Warn("rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			retryAfter := int(res.RetryAfter / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
