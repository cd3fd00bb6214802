package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/uuid"
)

// PositionPrice represents a historical price entry for a position.
// Rows are immutable time-series data, so there is no Base embed and no soft delete.
type PositionPrice struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	PositionID string          `gorm:"type:uuid;not null;index" json:"position_id"`
	Price      decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	RecordedAt time.Time       `gorm:"not null" json:"recorded_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PositionPrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
