// Package cache provides the tag-invalidated read-through cache used by the
// tracker's queries, over an in-process or Redis backend.
//
// Every tag carries a version. A cached record remembers the versions of its
// tags at the moment its fill started; invalidating a tag bumps its version,
// so every record that declared it stops matching and the next read refills.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("cache")

// Backend stores encoded records and tag versions.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TagVersions returns the current version of each tag, 0 for tags never
	// invalidated.
	TagVersions(ctx context.Context, tags []string) ([]int64, error)
	BumpTags(ctx context.Context, tags []string) error
	Close() error
}

// Recorder receives cache metrics.
type Recorder interface {
	IncrCacheHit(query string)
	IncrCacheMiss(query string)
	AddCacheInvalidations(n int)
	IncrExternalError(service string)
}

type record struct {
	Versions []int64         `json:"v"`
	Value    json.RawMessage `json:"d"`
}

// Cache is the read-through cache. Build one per process and share it.
type Cache struct {
	backend Backend
	ttl     time.Duration
	metrics Recorder
	logger  *zap.Logger
	group   singleflight.Group
}

// New creates a cache over backend. ttl bounds memory only; correctness comes
// from tag invalidation.
func New(backend Backend, ttl time.Duration, metrics Recorder, logger *zap.Logger) *Cache {
	return &Cache{backend: backend, ttl: ttl, metrics: metrics, logger: logger}
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Query describes one cached read.
type Query[A, R any] struct {
	// Name identifies the query in keys and metrics.
	Name string
	// Key renders the argument tuple. Distinct arguments must render distinct keys.
	Key func(A) string
	// Tags lists the tags whose invalidation drops the cached result.
	Tags func(A) []string
	// Load computes the result from the store.
	Load func(ctx context.Context, arg A) (R, error)
}

// Cached wraps q.Load so results are memoized per argument until any of the
// argument's tags is invalidated. Concurrent misses for the same argument and
// tag versions share one load. Backend failures degrade to calling Load
// directly.
func Cached[A, R any](c *Cache, q Query[A, R]) func(ctx context.Context, arg A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		ctx, span := tracer.Start(ctx, "Cache."+q.Name)
		defer span.End()

		var zero R
		key := "q:" + q.Name + ":" + q.Key(arg)
		tags := q.Tags(arg)

		versions, err := c.backend.TagVersions(ctx, tags)
		if err != nil {
			c.backendFailed("tag versions", key, err)
			return q.Load(ctx, arg)
		}

		if v, ok := lookup[R](ctx, c, key, versions); ok {
			c.metrics.IncrCacheHit(q.Name)
			return v, nil
		}
		c.metrics.IncrCacheMiss(q.Name)

		// The shared load outlives any single caller: it runs detached from
		// the caller's cancellation and each caller stops waiting on its own.
		flight := key + "@" + versionString(versions)
		ch := c.group.DoChan(flight, func() (any, error) {
			loadCtx := context.WithoutCancel(ctx)
			val, err := q.Load(loadCtx, arg)
			if err != nil {
				return nil, err
			}
			c.fill(loadCtx, key, versions, val)
			return val, nil
		})
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return zero, res.Err
			}
			return res.Val.(R), nil
		}
	}
}

func lookup[R any](ctx context.Context, c *Cache, key string, versions []int64) (R, bool) {
	var zero R

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.backendFailed("get", key, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn("cache: dropping undecodable record", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	if !slices.Equal(rec.Versions, versions) {
		return zero, false
	}

	var v R
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		c.logger.Warn("cache: dropping undecodable value", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

func (c *Cache) fill(ctx context.Context, key string, versions []int64, val any) {
	payload, err := json.Marshal(val)
	if err != nil {
		c.logger.Warn("cache: value not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	raw, err := json.Marshal(record{Versions: versions, Value: payload})
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
		c.backendFailed("set", key, err)
	}
}

// Invalidate bumps the version of every tag. Invalidating a tag twice is the
// same as invalidating it once for every reader that comes after.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) error {
	ctx, span := tracer.Start(ctx, "Cache.Invalidate")
	defer span.End()

	tags = dedupe(tags)
	if len(tags) == 0 {
		return nil
	}
	if err := c.backend.BumpTags(ctx, tags); err != nil {
		c.backendFailed("invalidate", strings.Join(tags, ","), err)
		return &domain.ErrExternalService{Service: "cache", Err: err}
	}

	c.metrics.AddCacheInvalidations(len(tags))
	c.logger.Debug("cache: tags invalidated", zap.Strings("tags", tags))
	return nil
}

func (c *Cache) backendFailed(op, key string, err error) {
	c.metrics.IncrExternalError("cache")
	c.logger.Warn("cache: backend call failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func versionString(versions []int64) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ".")
}
