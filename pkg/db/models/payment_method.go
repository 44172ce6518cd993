package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// PaymentMethod is a payment channel with its commission rate and amount bounds.
type PaymentMethod struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Name           string                  `gorm:"column:name;not null;uniqueIndex"`
	MethodType     enums.PaymentMethodType `gorm:"column:method_type;type:payment_method_type;not null"`
	CommissionRate decimal.Decimal         `gorm:"column:commission_rate;type:numeric(6,4);not null"`
	MinAmount      decimal.Decimal         `gorm:"column:min_amount;type:numeric(14,2);not null"`
	MaxAmount      decimal.Decimal         `gorm:"column:max_amount;type:numeric(14,2);not null"`
	IsActive       bool                    `gorm:"column:is_active;not null;default:true"`
	Description    string                  `gorm:"column:description"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *PaymentMethod) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
