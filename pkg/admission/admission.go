// Package admission gates newly accepted SOCKS5 connections by source IP,
// adapting the teacher's HTTP rate-limit middleware (INCR/EXPIRE against
// Redis) to the socks5.Admitter hook that runs once per accepted
// connection instead of once per HTTP request.
package admission

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter admits a connection if its source IP has made fewer than
// max connections within the current window, tracked via Redis INCR with
// an EXPIRE set on the first hit in each window.
type RedisLimiter struct {
	redis  *redis.Client
	max    int
	window time.Duration
}

// NewRedisLimiter constructs a Redis-backed admission limiter.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, max: max, window: window}
}

// Admit implements socks5.Admitter. On a Redis error it fails open,
// admitting the connection rather than dropping traffic because the
// limiter's backing store is unavailable.
func (l *RedisLimiter) Admit(remoteAddr net.Addr) bool {
	host, _, err := net.SplitHostPort(remoteAddr.String())
	if err != nil {
		host = remoteAddr.String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	key := fmt.Sprintf("socks5:admission:%s", host)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}

	return count <= int64(l.max)
}

// InMemoryLimiter is a sliding-window admission limiter with no external
// dependency, used as the fallback when the configured Redis server cannot
// be reached at startup.
type InMemoryLimiter struct {
	seen   map[string][]time.Time
	max    int
	window time.Duration
}

// NewInMemoryLimiter constructs an in-memory admission limiter.
func NewInMemoryLimiter(max int, window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		seen:   make(map[string][]time.Time),
		max:    max,
		window: window,
	}
}

// Admit implements socks5.Admitter.
func (l *InMemoryLimiter) Admit(remoteAddr net.Addr) bool {
	host, _, err := net.SplitHostPort(remoteAddr.String())
	if err != nil {
		host = remoteAddr.String()
	}

	now := time.Now()
	var kept []time.Time
	for _, t := range l.seen[host] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.seen[host] = kept
		return false
	}

	l.seen[host] = append(kept, now)
	return true
}
