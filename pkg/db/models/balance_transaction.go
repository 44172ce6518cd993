package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// BalanceTransaction proves a single balance mutation. Rows are never updated.
type BalanceTransaction struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_balance_entries_user_sequence,priority:1"`
	Sequence      int64                  `gorm:"column:sequence;not null;uniqueIndex:idx_balance_entries_user_sequence,priority:2"`
	Direction     enums.BalanceDirection `gorm:"column:direction;type:balance_direction;not null"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	BalanceBefore decimal.Decimal        `gorm:"column:balance_before;type:numeric(14,2);not null"`
	BalanceAfter  decimal.Decimal        `gorm:"column:balance_after;type:numeric(14,2);not null"`
	TransactionID *uuid.UUID             `gorm:"column:transaction_id;type:uuid"`
	WithdrawalID  *uuid.UUID             `gorm:"column:withdrawal_id;type:uuid"`
	Description   string                 `gorm:"column:description"`
	Metadata      map[string]any         `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (b *BalanceTransaction) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Signed returns the entry amount with its direction applied.
func (b BalanceTransaction) Signed() decimal.Decimal {
	if b.Direction == enums.BalanceDirectionDebit {
		return b.Amount.Neg()
	}
	return b.Amount
}
