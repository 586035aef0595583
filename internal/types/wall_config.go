package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Wall config status lifecycle.
const (
	WallConfigStatusInitialized         = "initialized"
	WallConfigStatusInProgress          = "in_progress"
	WallConfigStatusPartiallyCalculated = "partially_calculated"
	WallConfigStatusCalculated          = "calculated"
	WallConfigStatusError               = "error"
	WallConfigStatusPendingDeletion     = "pending_deletion"
)

// WallConfigRecord is one registered wall configuration, identified by the
// hash of its normalized profile list. RawConfig keeps the profiles as
// submitted so simulations can be replayed without the original file.
type WallConfigRecord struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConfigHash        string         `gorm:"column:config_hash;uniqueIndex;not null" json:"config_hash"`
	Status            string         `gorm:"column:status;not null;index" json:"status"`
	DeletionInitiated bool           `gorm:"column:deletion_initiated;not null;default:false" json:"deletion_initiated"`
	RawConfig         datatypes.JSON `gorm:"type:jsonb;column:raw_config;not null" json:"raw_config"`
	CreatedAt         time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (WallConfigRecord) TableName() string { return "wall_config" }
