package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wallforge/wallsim-backend/internal/logger"
)

// ErrorTracker issues short correlation ids for technical errors surfaced
// to callers, so a support request carrying the id can be matched to the
// logged failure.
type ErrorTracker interface {
	NewErrorID(ctx context.Context) string
}

type redisErrorTracker struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewErrorTracker(rdb *goredis.Client, baseLog *logger.Logger) ErrorTracker {
	return &redisErrorTracker{
		rdb: rdb,
		log: baseLog.With("service", "ErrorTracker"),
	}
}

func (t *redisErrorTracker) NewErrorID(ctx context.Context) string {
	if t != nil && t.rdb != nil {
		n, err := t.rdb.Incr(ctx, "wall_sim_error_seq").Result()
		if err == nil {
			return fmt.Sprintf("err_%d", n)
		}
		t.log.Debug("Error counter unavailable, falling back to uuid", "error", err)
	}
	return "err_" + uuid.NewString()
}

// NopErrorTracker returns uuid-based ids without touching redis.
type NopErrorTracker struct{}

func (NopErrorTracker) NewErrorID(context.Context) string { return "err_" + uuid.NewString() }
