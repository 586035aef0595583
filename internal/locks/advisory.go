package locks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/logger"
)

// AdvisoryLocker backs the lock contract with postgres session advisory
// locks. Advisory locks are bound to the acquiring session, so each held key
// pins one pooled connection until Release.
type AdvisoryLocker struct {
	db  *gorm.DB
	log *logger.Logger

	mu   sync.Mutex
	held map[string]*sql.Conn
}

func NewAdvisoryLocker(db *gorm.DB, baseLog *logger.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{
		db:   db,
		log:  baseLog.With("service", "AdvisoryLocker"),
		held: map[string]*sql.Conn{},
	}
}

func (l *AdvisoryLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	if _, ok := l.held[key]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	sqlDB, err := l.db.DB()
	if err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}

	low, high := KeyPair(key)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1, $2)", low, high).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("advisory lock %q: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}

	l.mu.Lock()
	l.held[key] = conn
	l.mu.Unlock()
	l.log.Debug("Advisory lock acquired", "key", key)
	return true, nil
}

func (l *AdvisoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	low, high := KeyPair(key)
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1, $2)", low, high)
	closeErr := conn.Close()
	if err != nil {
		return fmt.Errorf("advisory unlock %q: %w", key, err)
	}
	return closeErr
}
