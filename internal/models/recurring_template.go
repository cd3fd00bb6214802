package models

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/calendar"
)

// RecurringTemplate is a periodic income or expense definition from which
// ledger transactions are materialized.
type RecurringTemplate struct {
	Base
	Name        string             `gorm:"not null" json:"name"`
	Amount      decimal.Decimal    `gorm:"type:numeric;not null" json:"amount"`
	Type        TransactionType    `gorm:"not null" json:"type"`
	CategoryID  *string            `gorm:"type:uuid" json:"category_id,omitempty"`
	AccountID   string             `gorm:"type:uuid;not null" json:"account_id"`
	Frequency   calendar.Frequency `gorm:"not null" json:"frequency"`
	DayOfPeriod int                `gorm:"not null;default:1" json:"day_of_period"`
	Month       int                `gorm:"not null;default:0" json:"month,omitempty"`
	Note        string             `json:"note"`
	AutoExecute bool               `gorm:"not null" json:"auto_execute"`
	IsActive    bool               `gorm:"not null;index:idx_recurring_due,priority:1" json:"is_active"`

	StartDate         time.Time  `gorm:"not null" json:"start_date"`
	LastExecutedDate  *time.Time `json:"last_executed_date,omitempty"`
	NextExecutionDate time.Time  `gorm:"not null;index:idx_recurring_due,priority:2" json:"next_execution_date"`

	// Incremented on every date change; writers update only if unchanged.
	Version int64 `gorm:"not null;default:1" json:"version"`
}

// Schedule returns the calendar descriptor for this template.
func (t *RecurringTemplate) Schedule() calendar.Schedule {
	return calendar.Schedule{
		Frequency:   t.Frequency,
		DayOfPeriod: t.DayOfPeriod,
		Month:       time.Month(t.Month),
	}
}
