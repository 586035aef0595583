package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Batch run status lifecycle. Interrupted marks a run stopped by a
// cooperative abort rather than a failure; it is terminal.
const (
	BatchRunStatusQueued      = "queued"
	BatchRunStatusRunning     = "running"
	BatchRunStatusCompleted   = "completed"
	BatchRunStatusInterrupted = "interrupted"
	BatchRunStatusFailed      = "failed"
)

// BatchRun is one background request to simulate a configuration across a
// range of crew counts. Workers claim queued runs and heartbeat while
// processing so stale running rows can be requeued.
type BatchRun struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WallConfigID uuid.UUID      `gorm:"type:uuid;not null;index" json:"wall_config_id"`
	ConfigHash   string         `gorm:"column:config_hash;not null;index" json:"config_hash"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	CrewsDone    int            `gorm:"column:crews_done;not null;default:0" json:"crews_done"`
	CrewsTotal   int            `gorm:"column:crews_total;not null;default:0" json:"crews_total"`
	Attempts     int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error        string         `gorm:"column:error" json:"error"`
	LastErrorAt  *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt     *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt  *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BatchRun) TableName() string { return "batch_run" }
