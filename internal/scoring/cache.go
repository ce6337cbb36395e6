package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"textanalysis/internal/constants"
	"textanalysis/internal/logger"
	"textanalysis/pkg/metrics"
)

// CachedScorer memoizes scores in Redis keyed by a hash of the text. A cache
// hit reports the originally measured duration. Redis failures fall through
// to the wrapped scorer.
type CachedScorer struct {
	next   Scorer
	client Cache
	ttl    time.Duration
	logger logger.Logger
}

// Cache is the part of a go-redis client the scorer needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type cachedResult struct {
	DurationMs int64 `json:"duration_ms"`
	Score      int   `json:"score"`
}

func NewCachedScorer(next Scorer, client Cache, ttl time.Duration, log logger.Logger) *CachedScorer {
	return &CachedScorer{next: next, client: client, ttl: ttl, logger: log}
}

func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return constants.CacheKeyPrefixScore + hex.EncodeToString(sum[:])
}

func (c *CachedScorer) Score(ctx context.Context, text string) (Result, error) {
	key := CacheKey(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedResult
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			metrics.IncScoreCache("hit")
			return Result{
				Duration: time.Duration(cached.DurationMs) * time.Millisecond,
				Score:    Clamp(cached.Score),
			}, nil
		}
		metrics.IncScoreCache("corrupt")
	case errors.Is(err, redis.Nil):
		metrics.IncScoreCache("miss")
	default:
		metrics.IncScoreCache("error")
		c.logger.WarnwCtx(ctx, "Score cache lookup failed", "error", err)
	}

	res, err := c.next.Score(ctx, text)
	if err != nil {
		return Result{}, err
	}

	payload, _ := json.Marshal(cachedResult{DurationMs: res.Duration.Milliseconds(), Score: res.Score})
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Score cache write failed", "error", err)
	}

	return res, nil
}
