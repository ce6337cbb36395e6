package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textanalysis/internal/logger"
)

func TestSimulatedScorer_ScoreRange(t *testing.T) {
	s := NewSimulatedScorerWithSeed(0, 0, 1)

	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		res, err := s.Score(context.Background(), "text")
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Score, MinScore)
		require.LessOrEqual(t, res.Score, MaxScore)
		seen[res.Score] = true
	}
	assert.Greater(t, len(seen), 50)
}

func TestSimulatedScorer_DurationWithinWindow(t *testing.T) {
	min, max := 5*time.Millisecond, 15*time.Millisecond
	s := NewSimulatedScorerWithSeed(min, max, 42)

	for i := 0; i < 5; i++ {
		start := time.Now()
		res, err := s.Score(context.Background(), "text")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Duration, min)
		assert.LessOrEqual(t, res.Duration, max)
		assert.GreaterOrEqual(t, time.Since(start), res.Duration)
	}
}

func TestSimulatedScorer_ContextCancel(t *testing.T) {
	s := NewSimulatedScorer(time.Hour, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Score(ctx, "text")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimulatedScorer_InvertedWindow(t *testing.T) {
	s := NewSimulatedScorerWithSeed(2*time.Millisecond, time.Millisecond, 3)
	res, err := s.Score(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Millisecond, res.Duration)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 100, Clamp(250))
	assert.Equal(t, 42, Clamp(42))
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	ttls   map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return redis.NewStringResult("", c.getErr)
	}
	v, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return redis.NewStatusResult("", c.setErr)
	}
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	c.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

type countingScorer struct {
	calls  int
	result Result
	err    error
}

func (s *countingScorer) Score(ctx context.Context, text string) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestCachedScorer_MissThenHit(t *testing.T) {
	inner := &countingScorer{result: Result{Duration: 1500 * time.Millisecond, Score: 88}}
	cache := newFakeCache()
	s := NewCachedScorer(inner, cache, time.Hour, logger.NopLogger())

	first, err := s.Score(context.Background(), "you are great")
	require.NoError(t, err)
	second, err := s.Score(context.Background(), "you are great")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 88, second.Score)
	assert.Equal(t, time.Hour, cache.ttls[CacheKey("you are great")])

	_, err = s.Score(context.Background(), "another text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedScorer_RedisDownFallsThrough(t *testing.T) {
	inner := &countingScorer{result: Result{Score: 10}}
	cache := newFakeCache()
	cache.getErr = errors.New("dial tcp: i/o timeout")
	cache.setErr = errors.New("dial tcp: i/o timeout")
	s := NewCachedScorer(inner, cache, time.Minute, logger.NopLogger())

	res, err := s.Score(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Score)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedScorer_CorruptEntryRescored(t *testing.T) {
	inner := &countingScorer{result: Result{Score: 33}}
	cache := newFakeCache()
	cache.data[CacheKey("text")] = "not-json"
	s := NewCachedScorer(inner, cache, time.Minute, logger.NopLogger())

	res, err := s.Score(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 33, res.Score)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedScorer_ScorerErrorNotCached(t *testing.T) {
	inner := &countingScorer{err: errors.New("model unavailable")}
	cache := newFakeCache()
	s := NewCachedScorer(inner, cache, time.Minute, logger.NopLogger())

	_, err := s.Score(context.Background(), "text")
	require.Error(t, err)
	assert.Empty(t, cache.data)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("a"), CacheKey("a"))
	assert.NotEqual(t, CacheKey("a"), CacheKey("b"))
	assert.Contains(t, CacheKey("a"), "score:")
}
