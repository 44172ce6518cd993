package enums

import "testing"

func TestTransactionStatusTransitions(t *testing.T) {
	cases := []struct {
		from TransactionStatus
		to   TransactionStatus
		ok   bool
	}{
		{TransactionStatusPending, TransactionStatusCompleted, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusCancelled, true},
		{TransactionStatusPending, TransactionStatusRefunded, false},
		{TransactionStatusCompleted, TransactionStatusRefunded, true},
		{TransactionStatusCompleted, TransactionStatusDisputed, true},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusDisputed, TransactionStatusRefunded, true},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
		{TransactionStatusCancelled, TransactionStatusPending, false},
		{TransactionStatusRefunded, TransactionStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestWithdrawalStatusTransitions(t *testing.T) {
	if !WithdrawalStatusPending.CanTransitionTo(WithdrawalStatusApproved) {
		t.Fatalf("pending should approve")
	}
	if !WithdrawalStatusApproved.CanTransitionTo(WithdrawalStatusCancelled) {
		t.Fatalf("approved should cancel")
	}
	if WithdrawalStatusApproved.CanTransitionTo(WithdrawalStatusRejected) {
		t.Fatalf("approved should not reject")
	}
	if WithdrawalStatusPending.CanTransitionTo(WithdrawalStatusCompleted) {
		t.Fatalf("pending should not complete directly")
	}
	if WithdrawalStatusCompleted.HoldsFunds() || WithdrawalStatusRejected.HoldsFunds() {
		t.Fatalf("terminal withdrawals should not hold funds")
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseTransactionKind("gift"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if kind, err := ParseTransactionKind("refund"); err != nil || kind != TransactionKindRefund {
		t.Fatalf("expected refund kind, got %q err=%v", kind, err)
	}
	if _, err := ParsePayoutMethod("visa"); err == nil {
		t.Fatalf("visa is not a payout method")
	}
	if _, err := ParseReportStatus("resolved_release"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBalanceDirectionSign(t *testing.T) {
	if BalanceDirectionCredit.Sign() != 1 || BalanceDirectionDebit.Sign() != -1 {
		t.Fatalf("unexpected signs")
	}
}

func TestReportStatusHelpers(t *testing.T) {
	if !ReportStatusInvestigating.IsOpen() || ReportStatusDismissed.IsOpen() {
		t.Fatalf("unexpected IsOpen")
	}
	if !ReportStatusResolvedRefund.IsResolution() || ReportStatusPending.IsResolution() {
		t.Fatalf("unexpected IsResolution")
	}
}

func TestParsePaymentMethodTypeNormalizesCase(t *testing.T) {
	got, err := ParsePaymentMethodType("  MirPay ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != PaymentMethodTypeMirPay {
		t.Fatalf("expected mirpay, got %s", got)
	}
	if !got.IsValid() || got.SettlesInternally() {
		t.Fatalf("mirpay should be valid and external")
	}
	if _, err := ParsePaymentMethodType("cash"); err == nil {
		t.Fatalf("expected error for unknown method type")
	}
}
