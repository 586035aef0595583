package types

import (
	"time"

	"github.com/google/uuid"
)

// Wall is one completed simulation of a configuration with a fixed crew
// count. NumCrews 0 means the unlimited sequential build.
type Wall struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WallConfigID     uuid.UUID `gorm:"type:uuid;not null;index" json:"wall_config_id"`
	ConfigHash       string    `gorm:"column:config_hash;not null;uniqueIndex:idx_wall_hash_crews" json:"config_hash"`
	NumCrews         int       `gorm:"column:num_crews;not null;uniqueIndex:idx_wall_hash_crews" json:"num_crews"`
	TotalIceAmount   int64     `gorm:"column:total_ice_amount;not null" json:"total_ice_amount"`
	TotalCost        int64     `gorm:"column:total_cost;not null" json:"total_cost"`
	ConstructionDays int       `gorm:"column:construction_days;not null" json:"construction_days"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Wall) TableName() string { return "wall" }
