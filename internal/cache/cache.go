package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/wallforge/wallsim-backend/internal/locks"
	"github.com/wallforge/wallsim-backend/internal/logger"
)

// FastTier is the ephemeral low-latency store in front of the durable tier.
// Implementations must treat all failures as transient; the Layer swallows
// them and falls through to the durable tier.
type FastTier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// DurableFetch looks a value up in the durable tier. The bool reports
// presence; an error means the durable tier itself failed.
type DurableFetch func(ctx context.Context) (int64, bool, error)

// Entry is one deferred fast-tier write, committed only after the durable
// transaction that produced it.
type Entry struct {
	Key   string
	Value int64
	TTL   time.Duration
}

// Layer is the two-tier read-through cache. The durable tier is the
// authority; the fast tier is reconstructible from it at any time.
type Layer struct {
	fast FastTier
	log  *logger.Logger
}

func NewLayer(fast FastTier, baseLog *logger.Logger) *Layer {
	return &Layer{
		fast: fast,
		log:  baseLog.With("service", "CacheLayer"),
	}
}

// GetInt64 reads through both tiers: fast tier first, then the durable
// fetch, repopulating the fast tier on a durable hit. Fast-tier failures
// degrade to a miss and are never surfaced.
func (l *Layer) GetInt64(ctx context.Context, key string, ttl time.Duration, durable DurableFetch) (int64, bool, error) {
	raw, hit, err := l.fast.Get(ctx, key)
	if err != nil {
		l.log.Debug("Fast tier read failed, treating as miss", "key", key, "error", err)
	} else if hit {
		parsed, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr == nil {
			return parsed, true, nil
		}
		l.log.Warn("Fast tier entry not parseable, treating as miss", "key", key, "value", raw)
	}

	value, found, err := durable(ctx)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	// Opportunistic repopulation; losing it costs one more durable read.
	if setErr := l.fast.Set(ctx, key, strconv.FormatInt(value, 10), ttl); setErr != nil {
		l.log.Debug("Fast tier repopulation failed", "key", key, "error", setErr)
	}
	return value, true, nil
}

// CommitDeferred writes a batch of entries to the fast tier under the given
// lock, after the durable transaction producing them has committed. Failure
// to acquire means another process that finished the same computation is
// already writing identical values; skipping is correct.
func (l *Layer) CommitDeferred(ctx context.Context, locker locks.Locker, lockKey string, entries []Entry) {
	acquired, err := locker.TryAcquire(ctx, lockKey)
	if err != nil {
		l.log.Debug("Fast tier lock unavailable, skipping deferred commit", "key", lockKey, "error", err)
		return
	}
	if !acquired {
		l.log.Debug("Fast tier commit already handled elsewhere", "key", lockKey)
		return
	}
	defer func() {
		if relErr := locker.Release(ctx, lockKey); relErr != nil {
			l.log.Debug("Fast tier lock release failed", "key", lockKey, "error", relErr)
		}
	}()

	for _, entry := range entries {
		if err := l.fast.Set(ctx, entry.Key, strconv.FormatInt(entry.Value, 10), entry.TTL); err != nil {
			l.log.Debug("Deferred fast tier write failed", "key", entry.Key, "error", err)
		}
	}
}

// Cleanup drops every fast-tier entry derived from a configuration.
// Best-effort: stale entries that survive expire on their own or stay
// harmlessly wrong until then.
func (l *Layer) Cleanup(ctx context.Context, configHash string, profileHashes map[int]string) {
	for _, prefix := range ConfigPrefixes(configHash) {
		if err := l.fast.DeleteByPrefix(ctx, prefix); err != nil {
			l.log.Debug("Fast tier cleanup failed", "prefix", prefix, "error", err)
		}
	}
	for _, profileHash := range profileHashes {
		if err := l.fast.Delete(ctx, ProfileCostKey(profileHash)); err != nil {
			l.log.Debug("Fast tier profile cleanup failed", "profile_hash", profileHash, "error", err)
		}
	}
}
