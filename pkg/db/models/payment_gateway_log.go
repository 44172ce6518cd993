package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/enums"
)

// PaymentGatewayLog is the verbatim audit trail of gateway traffic.
type PaymentGatewayLog struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID  *uuid.UUID           `gorm:"column:transaction_id;type:uuid;index"`
	GatewayName    string               `gorm:"column:gateway_name;not null"`
	LogType        enums.GatewayLogType `gorm:"column:log_type;type:gateway_log_type;not null"`
	RequestData    json.RawMessage      `gorm:"column:request_data;type:jsonb"`
	ResponseData   json.RawMessage      `gorm:"column:response_data;type:jsonb"`
	Headers        map[string]string    `gorm:"column:headers;type:jsonb;serializer:json"`
	StatusCode     *int                 `gorm:"column:status_code"`
	ResponseTimeMS *int64               `gorm:"column:response_time_ms"`
	ErrorMessage   *string              `gorm:"column:error_message"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (l *PaymentGatewayLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
