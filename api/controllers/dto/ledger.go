// Package dto maps persisted models onto the JSON shapes the API returns.
// Money is always rendered with two decimal places.
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/pkg/db/models"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func idString[T interface{ String() string }](v *T) *string {
	if v == nil {
		return nil
	}
	s := (*v).String()
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type Transaction struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Kind              string     `json:"kind"`
	Status            string     `json:"status"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	CommissionRate    string     `json:"commission_rate"`
	CommissionAmount  string     `json:"commission_amount"`
	NetAmount         string     `json:"net_amount"`
	PaymentMethodID   *string    `json:"payment_method_id,omitempty"`
	PurchaseID        *string    `json:"purchase_id,omitempty"`
	WithdrawalID      *string    `json:"withdrawal_id,omitempty"`
	ReversalOfID      *string    `json:"reversal_of_id,omitempty"`
	ExternalReference *string    `json:"external_reference,omitempty"`
	Description       string     `json:"description,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func FromTransaction(tx *models.Transaction) *Transaction {
	if tx == nil {
		return nil
	}
	return &Transaction{
		ID:                tx.ID.String(),
		UserID:            tx.UserID.String(),
		Kind:              tx.Kind.String(),
		Status:            tx.Status.String(),
		Amount:            money(tx.Amount),
		Currency:          tx.Currency,
		CommissionRate:    tx.CommissionRate.StringFixed(4),
		CommissionAmount:  money(tx.CommissionAmount),
		NetAmount:         money(tx.NetAmount),
		PaymentMethodID:   idString(tx.PaymentMethodID),
		PurchaseID:        idString(tx.PurchaseID),
		WithdrawalID:      idString(tx.WithdrawalID),
		ReversalOfID:      idString(tx.ReversalOfID),
		ExternalReference: tx.ExternalReference,
		Description:       tx.Description,
		FailureReason:     tx.FailureReason,
		CreatedAt:         tx.CreatedAt.UTC(),
		CompletedAt:       utc(tx.CompletedAt),
	}
}

func FromTransactions(txs []models.Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for i := range txs {
		out = append(out, *FromTransaction(&txs[i]))
	}
	return out
}

type Account struct {
	UserID       string     `json:"user_id"`
	Balance      string     `json:"balance"`
	Currency     string     `json:"currency"`
	LastSequence int64      `json:"last_sequence"`
	Frozen       bool       `json:"frozen"`
	FrozenAt     *time.Time `json:"frozen_at,omitempty"`
}

func FromAccount(account *models.Account, currency string) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		UserID:       account.UserID.String(),
		Balance:      money(account.Balance),
		Currency:     currency,
		LastSequence: account.LastSequence,
		Frozen:       account.Frozen,
		FrozenAt:     utc(account.FrozenAt),
	}
}

// BalanceReplay compares the cached balance with a replay of the balance log
// without freezing anything.
type BalanceReplay struct {
	UserID          string `json:"user_id"`
	CachedBalance   string `json:"cached_balance"`
	ReplayedBalance string `json:"replayed_balance"`
	Matches         bool   `json:"matches"`
}

func NewBalanceReplay(account *models.Account, replayed decimal.Decimal) *BalanceReplay {
	return &BalanceReplay{
		UserID:          account.UserID.String(),
		CachedBalance:   money(account.Balance),
		ReplayedBalance: money(replayed),
		Matches:         account.Balance.Equal(replayed),
	}
}

type BalanceEntry struct {
	ID            string         `json:"id"`
	Sequence      int64          `json:"sequence"`
	Direction     string         `json:"direction"`
	Amount        string         `json:"amount"`
	BalanceBefore string         `json:"balance_before"`
	BalanceAfter  string         `json:"balance_after"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	WithdrawalID  *string        `json:"withdrawal_id,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func FromBalanceEntries(entries []models.BalanceTransaction) []BalanceEntry {
	out := make([]BalanceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, BalanceEntry{
			ID:            e.ID.String(),
			Sequence:      e.Sequence,
			Direction:     e.Direction.String(),
			Amount:        money(e.Amount),
			BalanceBefore: money(e.BalanceBefore),
			BalanceAfter:  money(e.BalanceAfter),
			TransactionID: idString(e.TransactionID),
			WithdrawalID:  idString(e.WithdrawalID),
			Description:   e.Description,
			Metadata:      e.Metadata,
			CreatedAt:     e.CreatedAt.UTC(),
		})
	}
	return out
}

type PaymentMethod struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MethodType     string `json:"method_type"`
	CommissionRate string `json:"commission_rate"`
	MinAmount      string `json:"min_amount"`
	MaxAmount      string `json:"max_amount"`
	IsActive       bool   `json:"is_active"`
	Description    string `json:"description,omitempty"`
}

func FromPaymentMethod(m *models.PaymentMethod) *PaymentMethod {
	if m == nil {
		return nil
	}
	return &PaymentMethod{
		ID:             m.ID.String(),
		Name:           m.Name,
		MethodType:     m.MethodType.String(),
		CommissionRate: m.CommissionRate.StringFixed(4),
		MinAmount:      money(m.MinAmount),
		MaxAmount:      money(m.MaxAmount),
		IsActive:       m.IsActive,
		Description:    m.Description,
	}
}

func FromPaymentMethods(methods []models.PaymentMethod) []PaymentMethod {
	out := make([]PaymentMethod, 0, len(methods))
	for i := range methods {
		out = append(out, *FromPaymentMethod(&methods[i]))
	}
	return out
}
