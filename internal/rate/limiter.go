// Package rate implementa el guard de polling del device flow: un client que
// pollea más rápido que su interval recibe slow_down.
package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// MemoryLimiter: fixed window en memoria. Referencia y single-node.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string]*windowEntry
	Max    int64
	Window time.Duration
}

type windowEntry struct {
	start time.Time
	count int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   make(map[string]*windowEntry),
		Max:    int64(max),
		Window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.hits[key]
	if !ok || now.Sub(e.start) >= l.Window {
		e = &windowEntry{start: now}
		l.hits[key] = e
	}
	e.count++
	if e.count > l.Max {
		return Result{
			Allowed:     false,
			RetryAfter:  l.Window - now.Sub(e.start),
			CurrentHits: e.count,
		}, nil
	}
	return Result{Allowed: true, CurrentHits: e.count}, nil
}

// Sweep corre Cleanup una vez por ventana hasta que el contexto cierre.
// Sin esto el mapa de hits crece sin cota en procesos longevos.
func (l *MemoryLimiter) Sweep(ctx context.Context) {
	if l.Window <= 0 {
		return
	}
	t := time.NewTicker(l.Window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Cleanup()
		}
	}
}

// Cleanup barre ventanas viejas.
func (l *MemoryLimiter) Cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.hits {
		if now.Sub(e.start) >= l.Window {
			delete(l.hits, k)
		}
	}
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), compartido entre nodos.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	if hits > l.Max {
		return Result{
			Allowed:     false,
			RetryAfter:  l.Window - now.Sub(winStart),
			CurrentHits: hits,
		}, nil
	}
	return Result{Allowed: true, CurrentHits: hits}, nil
}
