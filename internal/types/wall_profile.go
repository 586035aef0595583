package types

import (
	"time"

	"github.com/google/uuid"
)

// WallProfile is one profile's share of a simulated wall. ProfileID is nil
// for sequential builds, where duplicate profile configurations share one
// row keyed by ProfileConfigHash; concurrent builds keep a row per position
// because crew assignment makes duplicate profiles progress differently.
type WallProfile struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WallID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_profile_wall_hash_pos" json:"wall_id"`
	ProfileConfigHash string    `gorm:"column:profile_config_hash;not null;uniqueIndex:idx_profile_wall_hash_pos;index" json:"profile_config_hash"`
	ProfileID         *int      `gorm:"column:profile_id;uniqueIndex:idx_profile_wall_hash_pos" json:"profile_id,omitempty"`
	Cost              int64     `gorm:"column:cost;not null" json:"cost"`
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WallProfile) TableName() string { return "wall_profile" }
