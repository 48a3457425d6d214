package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/fkhayef/smartrewards/internal/mukando"
)

// PayoutSweeper runs one pass over groups due for a payout.
type PayoutSweeper interface {
	RunPayoutSweep(ctx context.Context) (*mukando.SweepReport, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	sweeper PayoutSweeper
	logger  *slog.Logger
	timeout time.Duration
}

// NewJobs creates a new Jobs runner. Each run is bounded by timeout.
func NewJobs(sweeper PayoutSweeper, logger *slog.Logger, timeout time.Duration) *Jobs {
	return &Jobs{sweeper: sweeper, logger: logger, timeout: timeout}
}

// ProcessPayouts distributes the unpaid bonus of every matured group.
func (j *Jobs) ProcessPayouts() {
	j.logger.Info("starting payout sweep job")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.sweeper.RunPayoutSweep(ctx)
	if err != nil {
		j.logger.Error("payout sweep job failed", "error", err)
		return
	}

	for _, f := range report.Failures {
		j.logger.Warn("payout failed for group", "run_id", report.RunID, "group_id", f.GroupID, "error", f.Error)
	}

	j.logger.Info("payout sweep job finished",
		"run_id", report.RunID,
		"paid", len(report.Payouts),
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
}
