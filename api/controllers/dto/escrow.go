package dto

import (
	"encoding/json"
	"time"

	"github.com/devmarket/ledger-core/pkg/db/models"
)

type Purchase struct {
	ID                   string     `json:"id"`
	BuyerID              string     `json:"buyer_id"`
	ProjectID            string     `json:"project_id"`
	Amount               string     `json:"amount"`
	Status               string     `json:"status"`
	PaymentReference     *string    `json:"payment_reference,omitempty"`
	VerificationDeadline *time.Time `json:"verification_deadline,omitempty"`
	IsVerified           bool       `json:"is_verified"`
	VerificationNotes    *string    `json:"verification_notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func FromPurchase(p *models.Purchase) *Purchase {
	if p == nil {
		return nil
	}
	return &Purchase{
		ID:                   p.ID.String(),
		BuyerID:              p.BuyerID.String(),
		ProjectID:            p.ProjectID.String(),
		Amount:               money(p.Amount),
		Status:               p.Status.String(),
		PaymentReference:     p.PaymentReference,
		VerificationDeadline: utc(p.VerificationDeadline),
		IsVerified:           p.IsVerified,
		VerificationNotes:    p.VerificationNotes,
		CreatedAt:            p.CreatedAt.UTC(),
		CompletedAt:          utc(p.CompletedAt),
	}
}

func FromPurchases(purchases []models.Purchase) []Purchase {
	out := make([]Purchase, 0, len(purchases))
	for i := range purchases {
		out = append(out, *FromPurchase(&purchases[i]))
	}
	return out
}

type Report struct {
	ID         string     `json:"id"`
	PurchaseID string     `json:"purchase_id"`
	ReporterID string     `json:"reporter_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	AdminNotes *string    `json:"admin_notes,omitempty"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func FromReport(r *models.ProjectReport) *Report {
	if r == nil {
		return nil
	}
	return &Report{
		ID:         r.ID.String(),
		PurchaseID: r.PurchaseID.String(),
		ReporterID: r.ReporterID.String(),
		Reason:     r.Reason,
		Status:     r.Status.String(),
		AdminNotes: r.AdminNotes,
		ResolvedBy: idString(r.ResolvedBy),
		CreatedAt:  r.CreatedAt.UTC(),
		ResolvedAt: utc(r.ResolvedAt),
	}
}

func FromReports(reports []models.ProjectReport) []Report {
	out := make([]Report, 0, len(reports))
	for i := range reports {
		out = append(out, *FromReport(&reports[i]))
	}
	return out
}

type Withdrawal struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	Amount              string            `json:"amount"`
	CommissionAmount    string            `json:"commission_amount"`
	NetAmount           string            `json:"net_amount"`
	PayoutMethod        string            `json:"payout_method"`
	PayoutDetails       map[string]string `json:"payout_details,omitempty"`
	Status              string            `json:"status"`
	AdminNotes          *string           `json:"admin_notes,omitempty"`
	RejectionReason     *string           `json:"rejection_reason,omitempty"`
	ProcessedAt         *time.Time        `json:"processed_at,omitempty"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
	PayoutTransactionID *string           `json:"payout_transaction_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

func FromWithdrawal(w *models.WithdrawalRequest) *Withdrawal {
	if w == nil {
		return nil
	}
	return &Withdrawal{
		ID:                  w.ID.String(),
		UserID:              w.UserID.String(),
		Amount:              money(w.Amount),
		CommissionAmount:    money(w.CommissionAmount),
		NetAmount:           money(w.NetAmount),
		PayoutMethod:        w.PayoutMethod.String(),
		PayoutDetails:       w.PayoutDetails,
		Status:              w.Status.String(),
		AdminNotes:          w.AdminNotes,
		RejectionReason:     w.RejectionReason,
		ProcessedAt:         utc(w.ProcessedAt),
		CompletedAt:         utc(w.CompletedAt),
		PayoutTransactionID: idString(w.PayoutTransactionID),
		CreatedAt:           w.CreatedAt.UTC(),
	}
}

func FromWithdrawals(ws []models.WithdrawalRequest) []Withdrawal {
	out := make([]Withdrawal, 0, len(ws))
	for i := range ws {
		out = append(out, *FromWithdrawal(&ws[i]))
	}
	return out
}

type GatewayLog struct {
	ID             string            `json:"id"`
	GatewayName    string            `json:"gateway_name"`
	LogType        string            `json:"log_type"`
	RequestData    json.RawMessage   `json:"request_data,omitempty"`
	ResponseData   json.RawMessage   `json:"response_data,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	StatusCode     *int              `json:"status_code,omitempty"`
	ResponseTimeMS *int64            `json:"response_time_ms,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func FromGatewayLogs(logs []models.PaymentGatewayLog) []GatewayLog {
	out := make([]GatewayLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, GatewayLog{
			ID:             l.ID.String(),
			GatewayName:    l.GatewayName,
			LogType:        l.LogType.String(),
			RequestData:    l.RequestData,
			ResponseData:   l.ResponseData,
			Headers:        l.Headers,
			StatusCode:     l.StatusCode,
			ResponseTimeMS: l.ResponseTimeMS,
			ErrorMessage:   l.ErrorMessage,
			CreatedAt:      l.CreatedAt.UTC(),
		})
	}
	return out
}
