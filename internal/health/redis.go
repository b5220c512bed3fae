package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/systmms/tierup/internal/unit"
)

// RedisPinger is the part of the go-redis client used for probing.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisDialer creates a client for addr.
type RedisDialer func(addr string) (RedisPinger, error)

// RedisProber sends PING to a Redis server.
type RedisProber struct {
	dial RedisDialer
}

// NewRedisProber creates a prober with go-redis clients bounded by timeout.
func NewRedisProber(timeout time.Duration) *RedisProber {
	return &RedisProber{dial: func(addr string) (RedisPinger, error) {
		return dialRedis(addr, timeout)
	}}
}

// SetDialer replaces how clients are created, for testing.
func (p *RedisProber) SetDialer(dial RedisDialer) {
	p.dial = dial
}

// dialRedis accepts either host:port or a redis:// URL.
func dialRedis(addr string, timeout time.Duration) (RedisPinger, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.MaxRetries = -1
	return redis.NewClient(opts), nil
}

// Probe reports Healthy when the server answers PONG.
func (p *RedisProber) Probe(ctx context.Context, u unit.Unit) Result {
	start := time.Now()

	if u.Health.Addr == "" {
		return Result{Status: unit.StatusUnknown, Message: "no redis address configured"}
	}

	client, err := p.dial(u.Health.Addr)
	if err != nil {
		return Result{
			Status:   unit.StatusUnknown,
			Message:  fmt.Sprintf("invalid redis address: %v", err),
			Duration: time.Since(start),
		}
	}
	defer client.Close()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return Result{
			Status:   unit.StatusStarting,
			Message:  fmt.Sprintf("ping failed: %v", err),
			Duration: time.Since(start),
		}
	}
	if pong != "PONG" {
		return Result{
			Status:   unit.StatusStarting,
			Message:  fmt.Sprintf("unexpected reply %q", pong),
			Duration: time.Since(start),
		}
	}

	return Result{
		Status:   unit.StatusHealthy,
		Message:  "PONG",
		Duration: time.Since(start),
	}
}
