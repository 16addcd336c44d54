package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const rateWindow = time.Minute

// windowEntry tracks the request count of one client in the current window.
type windowEntry struct {
	count int
	start time.Time
}

// RateLimiter returns a middleware that enforces per-IP rate limiting using a fixed one-minute window.
// maxRequests is the maximum number of requests allowed per minute per IP; non-positive disables it.
func RateLimiter(maxRequests int) gin.HandlerFunc {
	if maxRequests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	clients := make(map[string]*windowEntry)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		// Drop stale entries on the request path instead of in a background goroutine.
		if now.Sub(lastSweep) > 5*time.Minute {
			for k, e := range clients {
				if now.Sub(e.start) > 2*rateWindow {
					delete(clients, k)
				}
			}
			lastSweep = now
		}

		entry, exists := clients[ip]
		if !exists || now.Sub(entry.start) > rateWindow {
			// New window
			clients[ip] = &windowEntry{count: 1, start: now}
			mu.Unlock()
			c.Next()
			return
		}

		if entry.count >= maxRequests {
			retryAfter := rateWindow - now.Sub(entry.start)
			mu.Unlock()
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", maxRequests),
			})
			return
		}

		entry.count++
		mu.Unlock()
		c.Next()
	}
}
