package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the cached balance for a user. It is a materialized view over
// balance_transactions and only the ledger writes to it.
type Account struct {
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance      decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	LastSequence int64           `gorm:"column:last_sequence;not null;default:0"`
	Frozen       bool            `gorm:"column:frozen;not null;default:false"`
	FrozenReason *string         `gorm:"column:frozen_reason"`
	FrozenAt     *time.Time      `gorm:"column:frozen_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }
