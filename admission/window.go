package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scoreline/core"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Window counts attempts per client key and reports whether another one fits.
type Window interface {
	// Allow records an attempt for key and reports whether it is within the
	// limit. An error means the window could not decide.
	Allow(ctx context.Context, key string) (bool, error)
}

// attemptLog is the trailing list of admitted attempt times for one client.
type attemptLog struct {
	mu    sync.Mutex
	times []time.Time
}

// SlidingWindow admits at most limit attempts per client within any trailing
// window. Client logs live in a bounded LRU so a flood of distinct addresses
// cannot grow memory without limit.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	logs *lru.Cache[string, *attemptLog]
}

// NewSlidingWindow creates an in-memory window tracking up to cacheSize
// clients.
func NewSlidingWindow(limit int, window time.Duration, cacheSize int) (*SlidingWindow, error) {
	cache, err := lru.New[string, *attemptLog](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create limiter cache: %w", err)
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		logs:   cache,
	}, nil
}

// Allow implements Window.
func (w *SlidingWindow) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	log, ok := w.logs.Get(key)
	if !ok {
		log = &attemptLog{}
		w.logs.Add(key, log)
	}
	w.mu.Unlock()

	log.mu.Lock()
	defer log.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)
	keep := 0
	for _, t := range log.times {
		if t.After(cutoff) {
			log.times[keep] = t
			keep++
		}
	}
	log.times = log.times[:keep]

	if len(log.times) >= w.limit {
		return false, nil
	}
	log.times = append(log.times, now)
	return true, nil
}

// Tracked returns the number of clients currently held in memory.
func (w *SlidingWindow) Tracked() int {
	return w.logs.Len()
}

// Redis breaker settings.
const (
	redisBreakerFailures = 5
	redisBreakerCooldown = 30 * time.Second
)

// RedisWindow is a fixed window counter shared by every instance pointing at
// the same Redis.
type RedisWindow struct {
	profile string
	limit   int
	window  time.Duration
	redis   *core.RedisCache
	breaker *breaker
	logger  *zap.SugaredLogger
}

// NewRedisWindow creates a Redis-backed window for profile.
func NewRedisWindow(profile string, limit int, window time.Duration, redis *core.RedisCache, logger *zap.SugaredLogger) *RedisWindow {
	return &RedisWindow{
		profile: profile,
		limit:   limit,
		window:  window,
		redis:   redis,
		breaker: newBreaker(redisBreakerFailures, redisBreakerCooldown),
		logger:  logger,
	}
}

// Allow implements Window. Redis failures are returned, never converted into
// an admit. After repeated failures Redis is skipped for a cooldown and every
// attempt fails fast with ErrBreakerOpen.
func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	if err := w.breaker.allow(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrEvaluatorUnavailable, err)
	}

	count, err := w.redis.IncrWindow(ctx, core.GetAdmissionCacheKey(w.profile, key), w.window)
	if old, state := w.breaker.record(err); old != state {
		w.logger.Warnw("Redis rate window circuit changed state",
			"profile", w.profile,
			"from", string(old),
			"to", string(state))
	}
	if err != nil {
		w.logger.Warnw("Redis rate window check failed", "profile", w.profile, "error", err)
		return false, fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, err)
	}
	return count <= int64(w.limit), nil
}
