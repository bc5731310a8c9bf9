package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/metrics"
)

// DefaultCacheTTL bounds how long a cached vector is reused.
const DefaultCacheTTL = 30 * 24 * time.Hour

// VectorCache stores computed vectors by key. A miss is (nil, false, nil).
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, v []float32) error
}

// MemoryCache is a process-local VectorCache with expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{entries: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return append([]float32(nil), e.vector...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, v []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{vector: append([]float32(nil), v...), expiresAt: c.now().Add(c.ttl)}
	return nil
}

const redisKeyPrefix = "embedding:"

// RedisCache shares vectors between processes. Values are little-endian float32 arrays.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	v, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, v []float32) error {
	if err := c.client.Set(ctx, redisKeyPrefix+key, encodeVector(v), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, errors.New("cached vector has a truncated element")
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return v, nil
}

// CachedEmbedder serves vectors from a VectorCache and embeds on miss.
// Cache failures are logged and never fail the call.
type CachedEmbedder struct {
	next   Embedder
	cache  VectorCache
	model  string
	logger *zap.Logger
}

// NewCachedEmbedder wraps next. model is part of the cache key so switching models never reuses stale vectors.
func NewCachedEmbedder(next Embedder, cache VectorCache, model string, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model, logger: logger}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string, p Profile) ([]float32, error) {
	key := CacheKey(p, e.model, text)

	v, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("embedding cache read failed", zap.String("profile", string(p)), zap.Error(err))
	}
	if ok && CheckDimension(v, p) == nil {
		metrics.EmbeddingCacheTotal.WithLabelValues(string(p), "hit").Inc()
		return v, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues(string(p), "miss").Inc()

	v, err = e.next.Embed(ctx, text, p)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, v); err != nil {
		e.logger.Warn("embedding cache write failed", zap.String("profile", string(p)), zap.Error(err))
	}
	return v, nil
}

// CacheKey identifies text under a profile and model. Text is case folded with collapsed whitespace.
func CacheKey(p Profile, model, text string) string {
	sum := sha1.Sum([]byte(string(p) + "|" + model + "|" + govcon.FoldKey(text)))
	return hex.EncodeToString(sum[:])
}
