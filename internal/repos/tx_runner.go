package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TxRunner is the shared transaction boundary for multi-row writes. Repos
// accept the transaction handle it hands out, so services can compose
// repo calls atomically without knowing about gorm directly.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return fmt.Errorf("transaction runner has nil db")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}
