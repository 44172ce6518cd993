package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "payment processing, please check back", retryable: true},
		{code: CodeUnavailable, status: http.StatusServiceUnavailable, publicMsg: "service temporarily unavailable", retryable: true},
		{code: CodeInsufficientFunds, status: http.StatusUnprocessableEntity, publicMsg: "insufficient balance", detailsOK: true},
		{code: CodeAlreadyProcessed, status: http.StatusOK, publicMsg: "already processed", detailsOK: true},
		{code: CodeLedgerFrozen, status: http.StatusLocked, publicMsg: "account is frozen pending review"},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detailed := base.WithDetails(map[string]any{"field": "foo"})
	if detailed.Details() == nil {
		t.Fatalf("details should be preserved on the copy")
	}
	if !stdErrors.Is(detailed, base) {
		t.Fatalf("detailed copy should still match its sentinel")
	}
	if stdErrors.Is(detailed, New(CodeValidation, "other")) {
		t.Fatalf("different message must not match")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeInsufficientFunds, "balance too low")
	outer := fmt.Errorf("settle: %w", inner)
	if !IsCode(outer, CodeInsufficientFunds) {
		t.Fatalf("expected wrapped insufficient funds error to match")
	}
	if IsCode(outer, CodeValidation) {
		t.Fatalf("unexpected match for validation code")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error should not match any code")
	}
}

func TestDumpCapturesChain(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("connection reset"), "insert transaction")
	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
}

func TestWithDetailsLeavesReceiverUntouched(t *testing.T) {
	base := New(CodeValidation, "bad amount")
	detailed := base.WithDetails(map[string]string{"field": "amount"})
	if base.Details() != nil {
		t.Fatalf("sentinel gained details: %v", base.Details())
	}
	if detailed.Details() == nil {
		t.Fatalf("expected details on the copy")
	}
	if detailed.Code() != CodeValidation {
		t.Fatalf("copy lost its code: %s", detailed.Code())
	}
}

func TestPostgresErrorFromBothDrivers(t *testing.T) {
	pgxErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: SQLStateUniqueViolation, ConstraintName: "transactions_external_reference_key"})
	pg, ok := PostgresError(pgxErr)
	if !ok || pg.Code != SQLStateUniqueViolation || pg.Constraint != "transactions_external_reference_key" {
		t.Fatalf("unexpected pgx extraction: %+v ok=%v", pg, ok)
	}

	pqErr := &pq.Error{Code: SQLStateCheckViolation, Constraint: "accounts_balance_check"}
	pg, ok = PostgresError(Wrap(CodeInternal, pqErr, "debit"))
	if !ok || pg.Code != SQLStateCheckViolation || pg.Constraint != "accounts_balance_check" {
		t.Fatalf("unexpected pq extraction: %+v ok=%v", pg, ok)
	}

	if _, ok := PostgresError(stdErrors.New("plain")); ok {
		t.Fatalf("plain errors carry no postgres fields")
	}
	if d := Dump(pqErr); d.PGConstraint != "accounts_balance_check" {
		t.Fatalf("dump missed constraint: %+v", d)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: timeout"), "call mirpay")
	if got := err.Error(); got != "DEPENDENCY_ERROR: call mirpay: dial tcp: timeout" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := New(CodeNotFound, "").Error(); got != "NOT_FOUND" {
		t.Fatalf("unexpected bare code string %q", got)
	}
}
