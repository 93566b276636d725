package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"

	"go.uber.org/zap"
)

func TestInMemory_SetAndGet(t *testing.T) {
	c := cache.NewInMemory[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestInMemory_GetMiss(t *testing.T) {
	c := cache.NewInMemory[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestInMemory_Expiration(t *testing.T) {
	c := cache.NewInMemory[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestInMemory_Delete(t *testing.T) {
	c := cache.NewInMemory[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestMemoryBackend_TagVersions(t *testing.T) {
	b := cache.NewMemoryBackend(time.Minute)
	defer b.Close()
	ctx := context.Background()

	v, _ := b.TagVersions(ctx, []string{"a", "b"})
	if v[0] != 0 || v[1] != 0 {
		t.Fatalf("expected fresh tags at version 0, got %v", v)
	}

	_ = b.BumpTags(ctx, []string{"a"})
	_ = b.BumpTags(ctx, []string{"a"})

	v, _ = b.TagVersions(ctx, []string{"a", "b"})
	if v[0] != 2 || v[1] != 0 {
		t.Errorf("expected [2 0], got %v", v)
	}
}

func TestMemoryBackend_TagLimitDropsRecordsWithoutReviving(t *testing.T) {
	b := cache.NewMemoryBackendWithLimit(time.Minute, 2)
	c := cache.New(b, time.Minute, observability.NewMetrics(), zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	var calls atomic.Int64
	list := newCountingQuery(c, &calls)

	_, _ = list(ctx, listArg{Owner: "u1"})
	_ = c.Invalidate(ctx, "global:budgets")
	_, _ = list(ctx, listArg{Owner: "u1"})
	if calls.Load() != 2 {
		t.Fatalf("expected a reload after invalidation, got %d loads", calls.Load())
	}

	// Two more tags overflow the table.
	_ = c.Invalidate(ctx, "id:x-budgets")
	_ = c.Invalidate(ctx, "id:y-budgets")
	if n := b.TagCount(); n > 2 {
		t.Fatalf("expected at most 2 tracked tags, got %d", n)
	}

	got, _ := list(ctx, listArg{Owner: "u1"})
	if got.Calls != 3 {
		t.Errorf("expected the record stored before the reset to be dropped, got value from load %d", got.Calls)
	}
	got, _ = list(ctx, listArg{Owner: "u1"})
	if got.Calls != 3 {
		t.Errorf("expected a hit after the reset, got value from load %d", got.Calls)
	}
}

func TestMemoryBackend_VersionsOnlyMoveForward(t *testing.T) {
	b := cache.NewMemoryBackendWithLimit(time.Minute, 1)
	defer b.Close()
	ctx := context.Background()

	_ = b.BumpTags(ctx, []string{"a"})
	before, _ := b.TagVersions(ctx, []string{"a", "b"})

	_ = b.BumpTags(ctx, []string{"b"})
	after, _ := b.TagVersions(ctx, []string{"a", "b"})

	for i := range before {
		if after[i] <= before[i] {
			t.Errorf("tag %d: expected version past %d after the reset, got %d", i, before[i], after[i])
		}
	}
}
