// Package worker drives the periodic ledger jobs: materializing due recurring
// templates and freezing the current month's snapshot.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/services"
)

// ActorScheduler is the audit actor recorded for worker runs.
const ActorScheduler = "scheduler"

// DefaultCatchUpLimit bounds catch-up rounds when Options.CatchUpLimit is unset.
const DefaultCatchUpLimit = 366

// Options configures a Runner.
type Options struct {
	// Repeat processing until nothing is due or CatchUpLimit rounds ran.
	CatchUp      bool
	CatchUpLimit int
	// RunOnce also takes the monthly snapshot after processing.
	TakeSnapshot bool
	ReminderDays int
}

// RunResult contains the outcome of one worker cycle.
type RunResult struct {
	Rounds     int
	Processed  int
	Failures   []services.ItemFailure
	SnapshotID string
	Duration   time.Duration
}

// Runner executes the scheduled jobs against the ledger services.
type Runner struct {
	recurring services.RecurringServicer
	snapshots services.SnapshotServicer
	audit     services.AuditServicer
	opts      Options
	log       *zap.SugaredLogger
}

// NewRunner creates a Runner.
func NewRunner(recurring services.RecurringServicer, snapshots services.SnapshotServicer, audit services.AuditServicer, opts Options) *Runner {
	if opts.CatchUpLimit < 1 {
		opts.CatchUpLimit = DefaultCatchUpLimit
	}
	if opts.ReminderDays < 1 {
		opts.ReminderDays = services.DefaultReminderHorizonDays
	}
	return &Runner{
		recurring: recurring,
		snapshots: snapshots,
		audit:     audit,
		opts:      opts,
		log:       logger.Named("scheduler"),
	}
}

// ProcessDue materializes every due template. With catch-up enabled each
// round advances templates by one period, so rounds repeat until a round
// processes nothing. Failures are those of the last round.
func (r *Runner) ProcessDue(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Failures: []services.ItemFailure{}}

	limit := 1
	if r.opts.CatchUp {
		limit = r.opts.CatchUpLimit
	}

	for result.Rounds < limit {
		if err := ctx.Err(); err != nil {
			break
		}
		report, err := r.recurring.ProcessAllDue(ctx, time.Time{})
		if err != nil {
			return nil, err
		}
		result.Rounds++
		result.Processed += report.Processed
		result.Failures = report.Failures
		if report.Processed == 0 {
			break
		}
	}

	if result.Rounds == limit && r.opts.CatchUp {
		r.log.Warnw("catch-up limit reached", "rounds", result.Rounds)
	}

	r.audit.Log(ActorScheduler, services.AuditActionProcessDue, "recurring_template", "", "", map[string]interface{}{
		"rounds":    result.Rounds,
		"processed": result.Processed,
		"failed":    len(result.Failures),
	})

	result.Duration = time.Since(start)
	r.log.Infow("due templates processed",
		"rounds", result.Rounds,
		"processed", result.Processed,
		"failed", len(result.Failures),
		"duration", result.Duration.String(),
	)
	return result, nil
}

// Snapshot freezes the current month.
func (r *Runner) Snapshot(ctx context.Context) (*models.MonthlySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := r.snapshots.CreateCurrentMonthSnapshot()
	if err != nil {
		return nil, err
	}
	r.audit.Log(ActorScheduler, services.AuditActionSnapshot, "monthly_snapshot", snap.ID, "", map[string]interface{}{
		"year":  snap.Year,
		"month": snap.Month,
	})
	r.log.Infow("monthly snapshot taken", "snapshot_id", snap.ID, "year", snap.Year, "month", snap.Month)
	return snap, nil
}

// Remind logs active templates falling due within days (Options.ReminderDays
// when days < 1) and returns them.
func (r *Runner) Remind(days int) ([]models.RecurringTemplate, error) {
	if days < 1 {
		days = r.opts.ReminderDays
	}
	upcoming, err := r.recurring.DueForReminder(time.Time{}, days)
	if err != nil {
		return nil, err
	}
	for _, tmpl := range upcoming {
		r.log.Infow("upcoming recurring transaction",
			"template_id", tmpl.ID,
			"name", tmpl.Name,
			"amount", tmpl.Amount.String(),
			"next_execution_date", tmpl.NextExecutionDate,
		)
	}
	r.log.Infow("reminder scan complete", "days", days, "upcoming", len(upcoming))
	return upcoming, nil
}

// RunOnce processes due templates and then, if configured, takes the snapshot.
// A snapshot failure is logged and does not fail the run.
func (r *Runner) RunOnce(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result, err := r.ProcessDue(ctx)
	if err != nil {
		return nil, err
	}

	if r.opts.TakeSnapshot {
		snap, err := r.Snapshot(ctx)
		if err != nil {
			r.log.Warnw("failed to take snapshot", "error", err)
		} else {
			result.SnapshotID = snap.ID
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Loop runs RunOnce immediately and then every interval until ctx is done.
// Errors from a cycle are logged and the loop keeps going.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Infow("scheduler started", "interval", interval.String())
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Errorw("scheduler cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
