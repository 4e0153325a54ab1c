package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"idleassets/api/internal/config"
)

// Limits is a token bucket: RefillRate tokens per second up to BucketSize.
type Limits struct {
	RefillRate int
	BucketSize int
}

// RouteLimits overrides the soft and hard limits of one route.
type RouteLimits struct {
	Soft Limits
	Hard Limits
}

// clientLimiter stores rate limiters for a specific client and route.
type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware manages rate limiting for API endpoints. Every client
// is held to the hard limit; anonymous clients are also held to the soft one.
type RateLimiterMiddleware struct {
	clients   map[string]*clientLimiter
	mu        sync.Mutex
	cfg       *config.Config
	overrides map[string]RouteLimits
	now       func() time.Time
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware. overrides is
// keyed by the gin route path, for example "/v1/auth/signin".
func NewRateLimiterMiddleware(cfg *config.Config, overrides map[string]RouteLimits) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:   make(map[string]*clientLimiter),
		cfg:       cfg,
		overrides: overrides,
		now:       time.Now,
	}
	go rm.cleanupClients()
	return rm
}

// getClientIdentifier keys limiters by client address and route, so a burst
// on one endpoint does not starve the others.
func getClientIdentifier(c *gin.Context) string {
	return c.ClientIP() + "|" + c.FullPath()
}

func (rm *RateLimiterMiddleware) limitsFor(route string) RouteLimits {
	if l, ok := rm.overrides[route]; ok {
		return l
	}
	return RouteLimits{
		Soft: Limits{RefillRate: rm.cfg.RateLimitSoftRefillRate, BucketSize: rm.cfg.RateLimitSoftBucketSize},
		Hard: Limits{RefillRate: rm.cfg.RateLimitHardRefillRate, BucketSize: rm.cfg.RateLimitHardBucketSize},
	}
}

// getClientLimiter retrieves or creates the rate limiters for a given client identifier.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string, limits RouteLimits) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(limits.Soft.RefillRate), limits.Soft.BucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(limits.Hard.RefillRate), limits.Hard.BucketSize),
		}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = rm.now()
	return limiter
}

// cleanupClients periodically removes old client entries from the map.
func (rm *RateLimiterMiddleware) cleanupClients() {
	for {
		time.Sleep(10 * time.Minute)
		if count := rm.removeIdle(30 * time.Minute); count > 0 {
			log.Printf("Rate limiter cleanup removed %d old client entries.", count)
		}
	}
}

func (rm *RateLimiterMiddleware) removeIdle(maxIdle time.Duration) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if rm.now().Sub(client.lastSeen) > maxIdle {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := getClientIdentifier(c)
		limiter := rm.getClientLimiter(clientKey, rm.limitsFor(c.FullPath()))

		if !limiter.hardLimiter.Allow() {
			log.Printf("Hard rate limit exceeded for client: %s", clientKey)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		_, hasCredential, _ := BearerToken(c)
		if !hasCredential && !limiter.softLimiter.Allow() {
			log.Printf("Soft rate limit exceeded for anonymous client: %s", clientKey)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded, sign in for a higher limit"})
			return
		}

		c.Next()
	}
}
