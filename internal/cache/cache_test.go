package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wallforge/wallsim-backend/internal/logger"
)

type fakeFastTier struct {
	mu     sync.Mutex
	data   map[string]string
	broken bool
	sets   int
}

func newFakeFastTier() *fakeFastTier {
	return &fakeFastTier{data: map[string]string{}}
}

func (f *fakeFastTier) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return "", false, errors.New("fast tier unreachable")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeFastTier) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return errors.New("fast tier unreachable")
	}
	f.sets++
	f.data[key] = value
	return nil
}

func (f *fakeFastTier) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeFastTier) DeleteByPrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
		}
	}
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	deny bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deny || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func TestGetInt64FastTierHitSkipsDurable(t *testing.T) {
	fast := newFakeFastTier()
	layer := NewLayer(fast, logger.NewNop())
	_ = fast.Set(context.Background(), "wall_cost_x", "4810", 0)

	durableCalls := 0
	v, found, err := layer.GetInt64(context.Background(), "wall_cost_x", 0, func(ctx context.Context) (int64, bool, error) {
		durableCalls++
		return 0, false, nil
	})
	if err != nil || !found || v != 4810 {
		t.Fatalf("fast tier hit: got (%d, %v, %v)", v, found, err)
	}
	if durableCalls != 0 {
		t.Fatalf("durable tier must not be consulted on a fast tier hit")
	}
}

func TestGetInt64RepopulatesFastTier(t *testing.T) {
	fast := newFakeFastTier()
	layer := NewLayer(fast, logger.NewNop())

	durableCalls := 0
	durable := func(ctx context.Context) (int64, bool, error) {
		durableCalls++
		return 2535, true, nil
	}

	v, found, err := layer.GetInt64(context.Background(), "wall_cost_y", 0, durable)
	if err != nil || !found || v != 2535 {
		t.Fatalf("durable hit: got (%d, %v, %v)", v, found, err)
	}

	// Second read must come from the repopulated fast tier.
	v, found, err = layer.GetInt64(context.Background(), "wall_cost_y", 0, durable)
	if err != nil || !found || v != 2535 {
		t.Fatalf("repopulated read: got (%d, %v, %v)", v, found, err)
	}
	if durableCalls != 1 {
		t.Fatalf("durable tier consulted %d times, want 1", durableCalls)
	}
}

func TestGetInt64FastTierFailureDegradesToMiss(t *testing.T) {
	fast := newFakeFastTier()
	fast.broken = true
	layer := NewLayer(fast, logger.NewNop())

	v, found, err := layer.GetInt64(context.Background(), "wall_cost_z", 0, func(ctx context.Context) (int64, bool, error) {
		return 99, true, nil
	})
	if err != nil {
		t.Fatalf("fast tier failure must not surface: %v", err)
	}
	if !found || v != 99 {
		t.Fatalf("durable value must be served despite fast tier outage, got (%d, %v)", v, found)
	}
}

func TestGetInt64MissInBothTiers(t *testing.T) {
	layer := NewLayer(newFakeFastTier(), logger.NewNop())

	_, found, err := layer.GetInt64(context.Background(), "wall_cost_none", 0, func(ctx context.Context) (int64, bool, error) {
		return 0, false, nil
	})
	if err != nil || found {
		t.Fatalf("double miss must report absent without error, got (%v, %v)", found, err)
	}
}

func TestCommitDeferredWritesUnderLock(t *testing.T) {
	fast := newFakeFastTier()
	layer := NewLayer(fast, logger.NewNop())
	locker := newFakeLocker()

	layer.CommitDeferred(context.Background(), locker, "wall_crtn_h_2", []Entry{
		{Key: "wall_cost_h", Value: 100},
		{Key: "dly_ice_usg_h_2_p_1", Value: 195, TTL: time.Hour},
	})

	if v, ok, _ := fast.Get(context.Background(), "wall_cost_h"); !ok || v != "100" {
		t.Fatalf("deferred entry missing: (%q, %v)", v, ok)
	}
	if _, ok, _ := fast.Get(context.Background(), "dly_ice_usg_h_2_p_1"); !ok {
		t.Fatalf("deferred day entry missing")
	}
	if locker.held["wall_crtn_h_2"] {
		t.Fatalf("lock must be released after the commit")
	}
}

func TestCommitDeferredSkipsOnContention(t *testing.T) {
	fast := newFakeFastTier()
	layer := NewLayer(fast, logger.NewNop())
	locker := newFakeLocker()
	locker.deny = true

	layer.CommitDeferred(context.Background(), locker, "wall_crtn_h_2", []Entry{
		{Key: "wall_cost_h", Value: 100},
	})

	if fast.sets != 0 {
		t.Fatalf("contended commit must write nothing, wrote %d entries", fast.sets)
	}
}

func TestCleanupDropsDerivedEntries(t *testing.T) {
	fast := newFakeFastTier()
	layer := NewLayer(fast, logger.NewNop())
	ctx := context.Background()

	_ = fast.Set(ctx, "wall_cost_h1", "1", 0)
	_ = fast.Set(ctx, "dly_ice_usg_h1_2_p_3", "195", 0)
	_ = fast.Set(ctx, "wall_prfl_cost_p1", "42", 0)
	_ = fast.Set(ctx, "wall_cost_other", "7", 0)

	layer.Cleanup(ctx, "h1", map[int]string{1: "p1"})

	for _, gone := range []string{"wall_cost_h1", "dly_ice_usg_h1_2_p_3", "wall_prfl_cost_p1"} {
		if _, ok, _ := fast.Get(ctx, gone); ok {
			t.Fatalf("key %s must be cleaned up", gone)
		}
	}
	if _, ok, _ := fast.Get(ctx, "wall_cost_other"); !ok {
		t.Fatalf("unrelated configuration entries must survive cleanup")
	}
}
