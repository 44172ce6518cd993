package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
	"github.com/devmarket/ledger-core/pkg/mirpay"
)

var (
	ErrPaymentDeclined    = pkgerrors.New(pkgerrors.CodeValidation, "payment declined by gateway")
	ErrNoGatewayReference = pkgerrors.New(pkgerrors.CodeStateConflict, "transaction has no gateway payment")
	ErrInvalidSignature   = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
)

// Verification outcomes returned by VerifyPayment.
const (
	VerifyConfirmed = "confirmed"
	VerifyPending   = "pending"
	VerifyFailed    = "failed"
	VerifyRefunded  = "refunded"
)

// Webhook outcomes. Every outcome is acknowledged to the gateway.
const (
	WebhookProcessed        = "processed"
	WebhookDuplicate        = "duplicate"
	WebhookUnknownReference = "unknown_reference"
	WebhookIgnored          = "ignored"
)

const webhookGuardTTL = 24 * time.Hour

// callTimeout bounds every request to the processor, including the caller's
// status polls.
const callTimeout = 30 * time.Second

// PaymentClient is the subset of the MirPay client the adapter uses.
type PaymentClient interface {
	CreatePayment(ctx context.Context, req mirpay.CreatePaymentRequest) (*mirpay.Payment, *mirpay.Exchange, error)
	PaymentStatus(ctx context.Context, payID string) (*mirpay.PaymentStatus, *mirpay.Exchange, error)
}

// WebhookGuard dedupes webhook deliveries before they reach the ledger.
type WebhookGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(gateway, reference, status string) string
}

// PurchaseSettler moves a purchase into escrow once its payment completes.
// It runs inside the ledger transaction that completed the payment.
type PurchaseSettler interface {
	MarkSettled(ctx context.Context, tx *gorm.DB, purchaseID, transactionID uuid.UUID, settledAt time.Time) error
}

// Service bridges ledger transactions and the external processor.
type Service interface {
	CreatePayment(ctx context.Context, transactionID uuid.UUID) (*Checkout, error)
	VerifyPayment(ctx context.Context, transactionID uuid.UUID) (*Verification, error)
	HandleWebhook(ctx context.Context, input WebhookInput) (*WebhookResult, error)
	Logs(ctx context.Context, transactionID uuid.UUID) ([]models.PaymentGatewayLog, error)
}

// Checkout is returned to the buyer after a gateway payment is opened.
type Checkout struct {
	Transaction *models.Transaction `json:"transaction"`
	PayID       string              `json:"payid"`
	PaymentURL  string              `json:"payment_url"`
}

// Verification is the result of a caller-driven status poll.
type Verification struct {
	Status      string              `json:"status"`
	Transaction *models.Transaction `json:"transaction"`
}

// WebhookPayload is the body MirPay posts on a status change.
type WebhookPayload struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
}

// WebhookInput is a raw delivery as received over HTTP.
type WebhookInput struct {
	Body      []byte
	Signature string
	Headers   map[string]string
}

// WebhookResult reports what a delivery did.
type WebhookResult struct {
	Outcome       string     `json:"outcome"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

// ServiceParams groups gateway adapter dependencies.
type ServiceParams struct {
	Repo          Repository
	Ledger        ledger.Service
	Client        PaymentClient
	Guard         WebhookGuard
	Purchases     PurchaseSettler
	Logger        *logger.Logger
	Metrics       *metrics.GatewayMetrics
	WebhookSecret string
}

type service struct {
	repo      Repository
	ledger    ledger.Service
	client    PaymentClient
	guard     WebhookGuard
	purchases PurchaseSettler
	logg      *logger.Logger
	metrics   *metrics.GatewayMetrics
	secret    string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway log repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment client required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase settler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		repo:      params.Repo,
		ledger:    params.Ledger,
		client:    params.Client,
		guard:     params.Guard,
		purchases: params.Purchases,
		logg:      params.Logger,
		metrics:   params.Metrics,
		secret:    params.WebhookSecret,
	}, nil
}

func (s *service) CreatePayment(ctx context.Context, transactionID uuid.UUID) (*Checkout, error) {
	tx, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != enums.TransactionStatusPending {
		return nil, ledger.ErrAlreadyProcessed
	}
	if tx.ExternalReference != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "gateway payment already opened")
	}
	ctx = s.logg.WithTransactionID(ctx, tx.ID)

	description := tx.Description
	if description == "" {
		description = "Payment " + tx.ID.String()
	}
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	payment, exchange, err := s.client.CreatePayment(callCtx, mirpay.CreatePaymentRequest{
		Amount:      tx.Amount,
		OrderRef:    tx.ID.String(),
		Description: description,
	})
	cancel()
	s.record(ctx, &tx.ID, "create", exchange, err)
	if err != nil {
		s.logg.Error(ctx, "gateway create payment failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway payment")
	}

	response := responseOf(exchange)
	if payment.Status == mirpay.StatusFailed {
		if _, err := s.ledger.Fail(ctx, tx.ID, "payment declined by gateway"); err != nil && !errors.Is(err, ledger.ErrAlreadyProcessed) {
			return nil, err
		}
		return nil, ErrPaymentDeclined
	}

	updated, err := s.ledger.SettleViaGateway(ctx, tx.ID, payment.PayID, response)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "gateway payment opened")
	return &Checkout{Transaction: updated, PayID: payment.PayID, PaymentURL: payment.PaymentURL}, nil
}

func (s *service) VerifyPayment(ctx context.Context, transactionID uuid.UUID) (*Verification, error) {
	tx, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsSettled() {
		return &Verification{Status: verificationOf(tx.Status), Transaction: tx}, nil
	}
	if tx.ExternalReference == nil {
		return nil, ErrNoGatewayReference
	}
	ctx = s.logg.WithTransactionID(ctx, tx.ID)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	status, exchange, err := s.client.PaymentStatus(callCtx, *tx.ExternalReference)
	cancel()
	s.record(ctx, &tx.ID, "status", exchange, err)
	if err != nil {
		s.logg.Warn(ctx, "gateway status poll failed: "+err.Error())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify gateway payment")
	}

	switch status.Status {
	case mirpay.StatusSuccess, mirpay.StatusFailed:
		if _, err := s.apply(ctx, tx, status.Status, status.Message, responseOf(exchange)); err != nil {
			return nil, err
		}
	default:
		return &Verification{Status: VerifyPending, Transaction: tx}, nil
	}

	current, err := s.ledger.GetTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	return &Verification{Status: verificationOf(current.Status), Transaction: current}, nil
}

func (s *service) HandleWebhook(ctx context.Context, input WebhookInput) (*WebhookResult, error) {
	if !ValidSignature(input.Body, s.secret, input.Signature) {
		s.metrics.IncWebhook(mirpay.Gateway, "invalid_signature")
		return nil, ErrInvalidSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(input.Body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	reference := strings.TrimSpace(payload.TransactionID)
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if reference == "" || status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction_id and status are required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"gateway_reference": reference, "gateway_status": status})

	tx, err := s.ledger.FindByReference(ctx, reference)
	if err != nil && !errors.Is(err, ledger.ErrTransactionNotFound) {
		return nil, err
	}
	var txID *uuid.UUID
	if tx != nil {
		txID = &tx.ID
	}
	s.writeLog(ctx, &models.PaymentGatewayLog{
		TransactionID: txID,
		GatewayName:   mirpay.Gateway,
		LogType:       enums.GatewayLogTypeWebhook,
		RequestData:   asJSON(input.Body),
		Headers:       input.Headers,
	})

	result := &WebhookResult{TransactionID: txID}
	switch {
	case tx == nil:
		s.logg.Warn(ctx, "webhook for unknown gateway reference")
		result.Outcome = WebhookUnknownReference
	case status != mirpay.StatusSuccess && status != mirpay.StatusFailed:
		result.Outcome = WebhookIgnored
	default:
		result.Outcome, err = s.deliver(ctx, tx, reference, status, payload.ErrorMessage, asJSON(input.Body))
		if err != nil {
			s.metrics.IncWebhook(mirpay.Gateway, "error")
			return nil, err
		}
	}
	s.metrics.IncWebhook(mirpay.Gateway, result.Outcome)
	return result, nil
}

// deliver applies one webhook status at most once. The Redis key filters
// replays cheaply; the ledger's row lock and state check are authoritative.
func (s *service) deliver(ctx context.Context, tx *models.Transaction, reference, status, message string, body json.RawMessage) (string, error) {
	var key string
	if s.guard != nil {
		key = s.guard.WebhookKey(mirpay.Gateway, reference, status)
		first, err := s.guard.SetNX(ctx, key, tx.ID.String(), webhookGuardTTL)
		switch {
		case err != nil:
			s.logg.Warn(ctx, "webhook guard unavailable: "+err.Error())
			key = ""
		case !first:
			return WebhookDuplicate, nil
		}
	}

	if tx.Status.IsSettled() {
		return WebhookDuplicate, nil
	}

	applied, err := s.apply(ctx, tx, status, message, body)
	if err != nil {
		if key != "" {
			_ = s.guard.Del(ctx, key)
		}
		return "", err
	}
	if !applied {
		return WebhookDuplicate, nil
	}
	return WebhookProcessed, nil
}

// apply moves a pending gateway transaction to its terminal state under the
// owner's ledger lock. It reports false when another delivery got there first.
// A success for a purchase another payment already settled is refunded to the
// buyer's balance in the same ledger transaction.
func (s *service) apply(ctx context.Context, tx *models.Transaction, status, message string, response json.RawMessage) (bool, error) {
	applied, duplicate := false, false
	err := s.ledger.RunForUser(ctx, tx.UserID, func(db *gorm.DB, w *ledger.Writer) error {
		var (
			result *models.Transaction
			err    error
		)
		if status == mirpay.StatusSuccess {
			result, err = w.CompleteExternal(ctx, tx.ID, response)
		} else {
			if strings.TrimSpace(message) == "" {
				message = "payment failed"
			}
			result, err = w.Fail(ctx, tx.ID, message, response)
		}
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			return nil
		}
		if err != nil {
			return err
		}
		applied = true

		if result.Status == enums.TransactionStatusCompleted && result.Kind == enums.TransactionKindPurchase && result.PurchaseID != nil {
			settledAt := time.Now().UTC()
			if result.CompletedAt != nil {
				settledAt = *result.CompletedAt
			}
			err = s.purchases.MarkSettled(ctx, db, *result.PurchaseID, result.ID, settledAt)
			if !errors.Is(err, escrow.ErrAlreadySettled) {
				return err
			}
			duplicate = true
			description := "duplicate payment for purchase " + result.PurchaseID.String() + " refunded to balance"
			_, err = w.Reverse(ctx, result.ID, description)
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	switch {
	case duplicate:
		s.logg.Warn(ctx, "gateway payment settled an already paid purchase; refunded to balance")
	case applied:
		s.logg.Info(ctx, "gateway payment "+status)
	}
	return applied, nil
}

func (s *service) Logs(ctx context.Context, transactionID uuid.UUID) ([]models.PaymentGatewayLog, error) {
	logs, err := s.repo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list gateway logs")
	}
	return logs, nil
}

// record appends the request and response (or error) of one gateway call.
func (s *service) record(ctx context.Context, transactionID *uuid.UUID, operation string, exchange *mirpay.Exchange, callErr error) {
	if exchange == nil {
		s.metrics.ObserveCall(mirpay.Gateway, operation, 0, callErr)
		return
	}
	s.metrics.ObserveCall(mirpay.Gateway, operation, exchange.Latency, callErr)

	s.writeLog(ctx, &models.PaymentGatewayLog{
		TransactionID: transactionID,
		GatewayName:   mirpay.Gateway,
		LogType:       enums.GatewayLogTypeRequest,
		RequestData:   exchange.RequestBody,
	})

	entry := &models.PaymentGatewayLog{
		TransactionID: transactionID,
		GatewayName:   mirpay.Gateway,
		LogType:       enums.GatewayLogTypeResponse,
		ResponseData:  exchange.ResponseBody,
		Headers:       exchange.Headers,
	}
	if exchange.StatusCode > 0 {
		code := exchange.StatusCode
		entry.StatusCode = &code
	}
	latency := exchange.Latency.Milliseconds()
	entry.ResponseTimeMS = &latency
	if callErr != nil {
		entry.LogType = enums.GatewayLogTypeError
		msg := callErr.Error()
		entry.ErrorMessage = &msg
	}
	s.writeLog(ctx, entry)
}

func (s *service) writeLog(ctx context.Context, entry *models.PaymentGatewayLog) {
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		s.logg.Warn(ctx, "write gateway log: "+err.Error())
	}
}

func responseOf(exchange *mirpay.Exchange) json.RawMessage {
	if exchange == nil {
		return nil
	}
	return exchange.ResponseBody
}

func asJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func verificationOf(status enums.TransactionStatus) string {
	switch status {
	case enums.TransactionStatusPending:
		return VerifyPending
	case enums.TransactionStatusFailed, enums.TransactionStatusCancelled:
		return VerifyFailed
	case enums.TransactionStatusRefunded:
		return VerifyRefunded
	default:
		return VerifyConfirmed
	}
}
