package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/devmarket/ledger-core/pkg/logger"
)

// expiryVerifier is satisfied by escrow.Service.
type expiryVerifier interface {
	VerifyExpired(ctx context.Context, now time.Time) (int64, error)
}

// VerificationSweepJobParams configures the verification sweep.
type VerificationSweepJobParams struct {
	Logger *logger.Logger
	Escrow expiryVerifier
	Now    func() time.Time
}

type verificationSweepJob struct {
	logg   *logger.Logger
	escrow expiryVerifier
	now    func() time.Time
}

// NewVerificationSweepJob builds the job that marks purchases verified once
// their reporting window closes without a report.
func NewVerificationSweepJob(params VerificationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &verificationSweepJob{logg: params.Logger, escrow: params.Escrow, now: now}, nil
}

func (j *verificationSweepJob) Name() string { return "verification-sweep" }

func (j *verificationSweepJob) Run(ctx context.Context) error {
	n, err := j.escrow.VerifyExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("verify expired purchases: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "verified", n), "verification sweep complete")
	return nil
}
