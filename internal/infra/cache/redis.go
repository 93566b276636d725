package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	recordPrefix = "tracker:record:"
	tagPrefix    = "tracker:tag:"
)

// RedisBackend shares cached records and tag versions between instances.
// Tag version keys never expire; records expire after the cache TTL, so a
// volatile-* eviction policy only ever drops records.
type RedisBackend struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// NewRedisBackend connects to url (redis://...) and verifies the connection.
func NewRedisBackend(ctx context.Context, url string, cfg resilience.Config, logger *zap.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", opts.Addr))
	return &RedisBackend{
		client: client,
		cb:     resilience.NewCircuitBreaker("redis", logger),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	found := false
	err := resilience.Guard(ctx, r.cb, r.cfg, func() error {
		b, err := r.client.Get(ctx, recordPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		raw, found = b, true
		return nil
	})
	return raw, found, err
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return resilience.Guard(ctx, r.cb, r.cfg, func() error {
		return r.client.Set(ctx, recordPrefix+key, value, ttl).Err()
	})
}

func (r *RedisBackend) TagVersions(ctx context.Context, tags []string) ([]int64, error) {
	out := make([]int64, len(tags))
	if len(tags) == 0 {
		return out, nil
	}

	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = tagPrefix + t
	}

	err := resilience.Guard(ctx, r.cb, r.cfg, func() error {
		vals, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			out[i] = 0
			s, ok := v.(string)
			if !ok {
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("tag %s: bad version %q", tags[i], s)
			}
			out[i] = n
		}
		return nil
	})
	return out, err
}

// BumpTags increments every tag version in one pipeline. Retrying a partly
// applied pipeline only bumps some tags twice, which readers cannot tell
// apart from a single bump.
func (r *RedisBackend) BumpTags(ctx context.Context, tags []string) error {
	return resilience.Guard(ctx, r.cb, r.cfg, func() error {
		_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, t := range tags {
				p.Incr(ctx, tagPrefix+t)
			}
			return nil
		})
		return err
	})
}

// Ping reports whether Redis answers.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
