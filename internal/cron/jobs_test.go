package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devmarket/ledger-core/internal/reconciliation"
)

type fakeVerifier struct {
	at  time.Time
	n   int64
	err error
}

func (f *fakeVerifier) VerifyExpired(_ context.Context, now time.Time) (int64, error) {
	f.at = now
	return f.n, f.err
}

type fakeReconciler struct {
	err error
}

func (f *fakeReconciler) Run(context.Context) (*reconciliation.Summary, error) {
	return &reconciliation.Summary{}, f.err
}

func TestVerificationSweepJobPassesClock(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	verifier := &fakeVerifier{n: 3}
	job, err := NewVerificationSweepJob(VerificationSweepJobParams{
		Logger: testLogger(),
		Escrow: verifier,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !verifier.at.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, verifier.at)
	}
}

func TestVerificationSweepJobWrapsError(t *testing.T) {
	boom := errors.New("db down")
	job, _ := NewVerificationSweepJob(VerificationSweepJobParams{Logger: testLogger(), Escrow: &fakeVerifier{err: boom}})
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestReconciliationJobSurfacesMismatch(t *testing.T) {
	boom := errors.New("mismatch")
	job, err := NewReconciliationJob(&fakeReconciler{err: boom})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "balance-reconciliation" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
