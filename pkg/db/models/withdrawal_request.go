package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// WithdrawalRequest tracks a seller payout from request through admin review.
type WithdrawalRequest struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Amount              decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	CommissionAmount    decimal.Decimal        `gorm:"column:commission_amount;type:numeric(14,2);not null"`
	NetAmount           decimal.Decimal        `gorm:"column:net_amount;type:numeric(14,2);not null"`
	PayoutMethod        enums.PayoutMethod     `gorm:"column:payout_method;type:payout_method;not null"`
	PayoutDetails       map[string]string      `gorm:"column:payout_details;type:jsonb;serializer:json"`
	Status              enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status;not null;default:'pending'"`
	AdminNotes          *string                `gorm:"column:admin_notes"`
	RejectionReason     *string                `gorm:"column:rejection_reason"`
	ProcessedBy         *uuid.UUID             `gorm:"column:processed_by;type:uuid"`
	ProcessedAt         *time.Time             `gorm:"column:processed_at"`
	CompletedAt         *time.Time             `gorm:"column:completed_at"`
	PayoutTransactionID *uuid.UUID             `gorm:"column:payout_transaction_id;type:uuid"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *WithdrawalRequest) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
