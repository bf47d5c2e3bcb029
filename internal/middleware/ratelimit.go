package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"procurement/pkg/response"
)

// RateLimiter throttles each authenticated user independently.
type RateLimiter struct {
	mu       sync.Mutex
	byUser   map[string]*rate.Limiter
	perMin   int
	burst    int
	disabled bool
}

// NewRateLimiter allows perMinute calls per user with the given burst.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = perMinute
	}
	return &RateLimiter{
		byUser:   make(map[string]*rate.Limiter),
		perMin:   perMinute,
		burst:    burst,
		disabled: perMinute <= 0,
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim := l.byUser[key]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.burst)
		l.byUser[key] = lim
	}
	return lim
}

// Middleware must run after RequirePermission so the user id is known.
// Anonymous callers share a limiter keyed by client IP.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.disabled {
			c.Next()
			return
		}
		key := c.GetString(CtxUserID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.limiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Error(http.StatusTooManyRequests, "Rate limit exceeded"))
			return
		}
		c.Next()
	}
}
