package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// Purchase is the escrow unit for a bought project.
type Purchase struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID              uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	ProjectID            uuid.UUID            `gorm:"column:project_id;type:uuid;not null"`
	Amount               decimal.Decimal      `gorm:"column:amount;type:numeric(14,2);not null"`
	Status               enums.PurchaseStatus `gorm:"column:status;type:purchase_status;not null;default:'pending'"`
	PaymentReference     *string              `gorm:"column:payment_reference"`
	VerificationDeadline *time.Time           `gorm:"column:verification_deadline"`
	IsVerified           bool                 `gorm:"column:is_verified;not null;default:false"`
	VerificationNotes    *string              `gorm:"column:verification_notes"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt          *time.Time           `gorm:"column:completed_at"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// WithinVerificationWindow reports whether now is before the deadline.
func (p Purchase) WithinVerificationWindow(now time.Time) bool {
	return p.VerificationDeadline != nil && now.Before(*p.VerificationDeadline)
}
