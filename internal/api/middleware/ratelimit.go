package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter is implemented by the in-memory and Redis-backed limiters.
type Limiter interface {
	Limit(next http.Handler) http.Handler
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket kept in process memory.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64 // tokens per second
	burst    float64 // max tokens
	now      func() time.Time
}

// NewRateLimiter starts a janitor goroutine that exits when ctx is done.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rps,
		burst:    float64(burst),
		now:      time.Now,
	}
	go rl.cleanup(ctx)
	return rl
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			tooManyRequests(w, 1)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{tokens: rl.burst, lastSeen: now}
		rl.visitors[key] = v
	}

	elapsed := now.Sub(v.lastSeen).Seconds()
	v.tokens += elapsed * rl.rate
	if v.tokens > rl.burst {
		v.tokens = rl.burst
	}
	v.lastSeen = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if rl.now().Sub(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RedisRateLimiter is a fixed one-minute window shared by every replica.
type RedisRateLimiter struct {
	client *redis.Client
	rpm    int
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, requestsPerMinute int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		rpm:    requestsPerMinute,
		prefix: "photopoet:rpm",
		now:    time.Now,
	}
}

func (l *RedisRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := l.Allow(r.Context(), clientKey(r))
		switch {
		case errors.Is(err, ErrLimitExceeded):
			tooManyRequests(w, l.secondsToNextWindow())
			return
		case err != nil:
			// Fail open when Redis is unreachable.
			slog.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

// Allow counts one request for key in the current window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.client == nil || l.rpm <= 0 {
		return nil
	}
	window := l.now().UTC().Unix() / 60
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		if err := l.client.Expire(ctx, redisKey, time.Minute).Err(); err != nil {
			slog.WarnContext(ctx, "rate limit window expiry not set", "key", redisKey, "error", err)
		}
	}
	if int(cnt) > l.rpm {
		return ErrLimitExceeded
	}
	return nil
}

func (l *RedisRateLimiter) secondsToNextWindow() int {
	return 60 - int(l.now().UTC().Unix()%60)
}

// clientKey uses the host part of RemoteAddr, which chi's RealIP middleware
// has already rewritten when proxy headers are present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func tooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{"error": ErrLimitExceeded.Error()})
}
