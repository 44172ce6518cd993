// Package mirpay is an HTTP client for the MirPay card acquiring API.
package mirpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/pkg/config"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

// Gateway is the name recorded on audit logs and metrics.
const Gateway = "mirpay"

// Payment statuses reported by MirPay.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const (
	defaultTimeout          = 30 * time.Second
	responseBodyReadLimit   = 64 << 10
	simulatedPaymentURLPath = "/payment/simulate/"
)

var errAPIKeyRequired = errors.New("mirpay api key is required")

// Client talks to MirPay, or simulates it outside production.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	kassaID    string
	successURL string
	failureURL string
	simulate   bool
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client from configuration. An API key is only required
// when calls go to the real gateway.
func NewClient(cfg config.MirPayConfig, opts ...Option) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		kassaID:    strings.TrimSpace(cfg.KassaID),
		successURL: cfg.SuccessURL,
		failureURL: cfg.FailureURL,
		simulate:   cfg.Simulated(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if !client.simulate && client.apiKey == "" {
		return nil, errAPIKeyRequired
	}
	return client, nil
}

// Simulated reports whether the client fakes gateway responses.
func (c *Client) Simulated() bool {
	return c != nil && c.simulate
}

// CreatePaymentRequest describes a checkout to open at MirPay.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	OrderRef    string
	Description string
}

// Payment is the gateway's answer to a create call.
type Payment struct {
	PayID      string `json:"payid"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// PaymentStatus is the gateway's view of an existing payment.
type PaymentStatus struct {
	PayID    string `json:"payid"`
	Status   string `json:"status"`
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// Balance is the merchant account balance held at MirPay.
type Balance struct {
	Balance decimal.Decimal `json:"balance"`
}

// Exchange captures one request/response pair for the gateway audit log.
type Exchange struct {
	Method       string
	URL          string
	RequestBody  json.RawMessage
	ResponseBody json.RawMessage
	Headers      map[string]string
	StatusCode   int
	Latency      time.Duration
	Simulated    bool
	Err          error
}

// CreatePayment opens a payment for req and returns the redirect URL.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, *Exchange, error) {
	if c == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "mirpay client not configured")
	}
	if strings.TrimSpace(req.OrderRef) == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	if !req.Amount.IsPositive() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	payload := map[string]string{
		"kassa_id":    c.kassaID,
		"summa":       req.Amount.StringFixed(2),
		"order_id":    req.OrderRef,
		"description": req.Description,
		"success_url": c.successURL,
		"failure_url": c.failureURL,
	}

	if c.simulate {
		payID := uuid.NewString()[:8]
		payment := &Payment{
			PayID:      payID,
			PaymentURL: simulatedPaymentURLPath + payID,
			Status:     StatusPending,
		}
		return payment, c.simulated(http.MethodPost, "/payment/create", payload, payment), nil
	}

	var payment Payment
	exchange, err := c.call(ctx, http.MethodPost, "/payment/create", payload, &payment)
	if err != nil {
		return nil, exchange, err
	}
	if payment.PayID == "" && payment.Status != StatusFailed {
		err := pkgerrors.New(pkgerrors.CodeDependency, "mirpay response missing payid")
		exchange.Err = err
		return nil, exchange, err
	}
	return &payment, exchange, nil
}

// PaymentStatus makes exactly one status request for payID. Polling again is
// the caller's decision, so every HTTP exchange surfaces to the audit log.
func (c *Client) PaymentStatus(ctx context.Context, payID string) (*PaymentStatus, *Exchange, error) {
	if c == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "mirpay client not configured")
	}
	payID = strings.TrimSpace(payID)
	if payID == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payid is required")
	}
	path := "/payment/status/" + url.PathEscape(payID)

	if c.simulate {
		status := &PaymentStatus{PayID: payID, Status: StatusSuccess, Verified: true}
		return status, c.simulated(http.MethodGet, path, nil, status), nil
	}

	var status PaymentStatus
	exchange, err := c.call(ctx, http.MethodGet, path, nil, &status)
	if err != nil {
		return nil, exchange, err
	}
	if status.PayID == "" {
		status.PayID = payID
	}
	return &status, exchange, nil
}

// Balance returns the merchant balance at MirPay.
func (c *Client) Balance(ctx context.Context) (*Balance, *Exchange, error) {
	if c == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "mirpay client not configured")
	}
	if c.simulate {
		balance := &Balance{Balance: decimal.Zero}
		return balance, c.simulated(http.MethodGet, "/balans", nil, balance), nil
	}
	var balance Balance
	exchange, err := c.call(ctx, http.MethodGet, "/balans", nil, &balance)
	if err != nil {
		return nil, exchange, err
	}
	return &balance, exchange, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any, out any) (*Exchange, error) {
	exchange := &Exchange{Method: method, URL: c.baseURL + path}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return exchange, c.fail(exchange, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal mirpay request"))
		}
		exchange.RequestBody = raw
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, exchange.URL, body)
	if err != nil {
		return exchange, c.fail(exchange, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build mirpay request"))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	exchange.Latency = time.Since(started)
	if err != nil {
		return exchange, c.fail(exchange, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute mirpay request"))
	}
	defer func() { _ = resp.Body.Close() }()

	exchange.StatusCode = resp.StatusCode
	exchange.Headers = flattenHeaders(resp.Header)
	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return exchange, c.fail(exchange, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read mirpay response"))
	}
	exchange.ResponseBody = asJSON(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		return exchange, c.fail(exchange, pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "mirpay request failed"))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return exchange, c.fail(exchange, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode mirpay response"))
		}
	}
	return exchange, nil
}

func (c *Client) fail(exchange *Exchange, err error) error {
	exchange.Err = err
	return err
}

func (c *Client) simulated(method, path string, payload, response any) *Exchange {
	exchange := &Exchange{Method: method, URL: c.baseURL + path, StatusCode: http.StatusOK, Simulated: true}
	if payload != nil {
		exchange.RequestBody, _ = json.Marshal(payload)
	}
	exchange.ResponseBody, _ = json.Marshal(response)
	return exchange
}

// asJSON keeps valid JSON bodies verbatim and quotes anything else so the
// audit log column always holds JSON.
func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}
