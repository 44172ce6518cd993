package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// ProjectReport is a buyer dispute. At most one exists per purchase.
type ProjectReport struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID uuid.UUID          `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex"`
	ReporterID uuid.UUID          `gorm:"column:reporter_id;type:uuid;not null"`
	Reason     string             `gorm:"column:reason;not null"`
	Status     enums.ReportStatus `gorm:"column:status;type:report_status;not null;default:'pending'"`
	AdminNotes *string            `gorm:"column:admin_notes"`
	ResolvedBy *uuid.UUID         `gorm:"column:resolved_by;type:uuid"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	ResolvedAt *time.Time         `gorm:"column:resolved_at"`
}

func (r *ProjectReport) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
