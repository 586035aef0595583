package types

import (
	"time"

	"github.com/google/uuid"
)

// WallProfileProgress is the ice laid by one wall profile on one day of
// construction. Days with no work for a profile have no row.
type WallProfileProgress struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WallProfileID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_profile_day" json:"wall_profile_id"`
	Day           int       `gorm:"column:day;not null;uniqueIndex:idx_progress_profile_day" json:"day"`
	IceUsed       int64     `gorm:"column:ice_used;not null" json:"ice_used"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WallProfileProgress) TableName() string { return "wall_profile_progress" }
