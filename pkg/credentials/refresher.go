package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// BalanceChecker re-queries the upstream service for a credential's
// current balance. Implemented by backend adapters that expose a balance
// endpoint.
type BalanceChecker interface {
	CheckBalance(ctx context.Context, cred *Credential) (float64, error)
}

// Refresher periodically re-queries the balance of every active
// credential on a cron schedule and feeds the observations back to the
// pool, so credentials drained outside this process are still evicted.
//
// Common schedules:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 * * * *"    - hourly
type Refresher struct {
	pool     *Pool
	checker  BalanceChecker
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRefresher creates a balance refresher for pool. The schedule uses
// standard five-field cron syntax; an empty schedule disables the
// refresher.
func NewRefresher(pool *Pool, checker BalanceChecker, schedule string, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		pool:     pool,
		checker:  checker,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "credentials.refresher", "backend", pool.backend),
	}
}

// Start validates the schedule and begins periodic refreshing. It is a
// no-op when no schedule is configured.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("refresh schedule not configured, skipping refresher")
		return nil
	}
	if r.running {
		return fmt.Errorf("refresher already running")
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.refreshAll(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("balance refresher started", "schedule", r.schedule)
	return nil
}

// Stop halts scheduled refreshing and waits for an in-flight run.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("balance refresher stopped")
}

// refreshAll re-queries every active credential once. Check failures are
// logged and skipped; a failed balance probe is not evidence of a bad
// credential.
func (r *Refresher) refreshAll(ctx context.Context) {
	state := r.pool.Snapshot()

	for i := range state.Active {
		cred := state.Active[i]

		balance, err := r.checker.CheckBalance(ctx, &cred)
		if err != nil {
			r.logger.Warn("balance check failed",
				"code", cred.Code,
				"error", err,
			)
			continue
		}

		r.logger.Debug("balance refreshed",
			"code", cred.Code,
			"balance", balance,
		)
		r.pool.ReportBalance(cred.Code, balance)
	}
}
