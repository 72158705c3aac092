// internal/storage/models/models.go
package models

import "time"

// BaseModel replaces gorm.Model for tighter control over columns.
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// Sweep transaction statuses. Pending is entered exactly once at submission;
// Confirmed and Failed are terminal.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// SweepTransaction is the persisted record of one submitted batch. Amounts
// are wei rendered as decimal strings; numeric(78,0) fits a full uint256.
type SweepTransaction struct {
	BaseModel
	Hash          string     `gorm:"unique;not null;type:varchar(66)"`
	UserID        string     `gorm:"index;not null;type:varchar(64)"`
	WalletAddress string     `gorm:"index;not null;type:varchar(42)"`
	Collection    string     `gorm:"not null;type:varchar(64)"`
	ItemIDs       string     `gorm:"type:text"` // comma-joined listing ids
	TotalAmount   string     `gorm:"not null;type:numeric(78,0)"`
	GasUsed       uint64     `gorm:"default:0"`
	Status        string     `gorm:"not null;type:varchar(20)"`
	ErrorMessage  string     `gorm:"type:text"`
	ConfirmedAt   *time.Time `gorm:"index"`
}

// DailySpend is the ledger aggregate of confirmed spend per user per
// midnight-aligned day window.
type DailySpend struct {
	BaseModel
	UserID     string    `gorm:"uniqueIndex:idx_user_day;not null;type:varchar(64)"`
	Day        time.Time `gorm:"uniqueIndex:idx_user_day;not null"`
	TotalSpent string    `gorm:"not null;type:numeric(78,0)"`
}

// UserLimit stores a per-user daily spending limit override.
type UserLimit struct {
	BaseModel
	UserID     string `gorm:"unique;not null;type:varchar(64)"`
	DailyLimit string `gorm:"not null;type:numeric(78,0)"`
}
