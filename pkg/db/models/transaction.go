package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// Transaction is the append-only record of a money-moving action.
// NetAmount and CommissionRate are fixed at creation.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Kind              enums.TransactionKind   `gorm:"column:kind;type:transaction_kind;not null"`
	Status            enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	Amount            decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency          string                  `gorm:"column:currency;not null;default:'UZS'"`
	CommissionRate    decimal.Decimal         `gorm:"column:commission_rate;type:numeric(6,4);not null;default:0"`
	CommissionAmount  decimal.Decimal         `gorm:"column:commission_amount;type:numeric(14,2);not null;default:0"`
	NetAmount         decimal.Decimal         `gorm:"column:net_amount;type:numeric(14,2);not null"`
	PaymentMethodID   *uuid.UUID              `gorm:"column:payment_method_id;type:uuid"`
	PurchaseID        *uuid.UUID              `gorm:"column:purchase_id;type:uuid;index"`
	WithdrawalID      *uuid.UUID              `gorm:"column:withdrawal_id;type:uuid"`
	ReversalOfID      *uuid.UUID              `gorm:"column:reversal_of_id;type:uuid;uniqueIndex"`
	ExternalReference *string                 `gorm:"column:external_reference;uniqueIndex"`
	GatewayResponse   json.RawMessage         `gorm:"column:gateway_response;type:jsonb"`
	Description       string                  `gorm:"column:description"`
	FailureReason     *string                 `gorm:"column:failure_reason"`
	IPAddress         *string                 `gorm:"column:ip_address"`
	UserAgent         *string                 `gorm:"column:user_agent"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt       *time.Time              `gorm:"column:completed_at"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
