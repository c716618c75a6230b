package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter hands each client a token bucket refilling perMinute tokens a
// minute. Clients are keyed by user when signed in and by IP otherwise.
// Buckets idle for five minutes are dropped.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
	interval time.Duration
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		now:      time.Now,
		interval: time.Minute / time.Duration(perMinute),
	}
}

func (limiter *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(max(int(limiter.interval.Seconds()), 1)))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","variant":"rate_limited","style":"default"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (limiter *RateLimiter) allow(key string) bool {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	for clientKey, client := range limiter.clients {
		if now.After(client.expires) {
			delete(limiter.clients, clientKey)
		}
	}

	client, ok := limiter.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.clients[key] = client
	}
	client.expires = now.Add(limiterIdle)
	return client.limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	if session := GetSession(r.Context()); session.Authenticated() {
		return "user:" + session.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
