// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"clinic-management-server/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type TokenSweeper interface {
	SweepExpiredTokens(ctx context.Context) (int64, error)
}

type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

type InvitationCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner. Each run gets its own timeout.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	timeout time.Duration
}

func NewScheduler(log *zap.Logger) *Scheduler {
	log = log.Named("jobs")
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{log}),
			cron.Recover(cronLogger{log}),
		)),
		log:     log,
		timeout: 5 * time.Minute,
	}
}

// Add registers fn under name. count is logged after each successful run.
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context) (int64, error)) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.log.Info("job finished", zap.String("job", name), zap.Int64("affected", n), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("jobs still running at shutdown")
	}
}

// Register schedules the standard maintenance jobs.
func Register(s *Scheduler, cfg config.JobsConfig, tokens TokenSweeper, invoices OverdueMarker, invitations InvitationCleaner) error {
	if err := s.Add(cfg.TokenSweep, "sweep-refresh-tokens", tokens.SweepExpiredTokens); err != nil {
		return err
	}
	err := s.Add(cfg.OverdueInvoices, "mark-overdue-invoices", func(ctx context.Context) (int64, error) {
		n, err := invoices.MarkOverdue(ctx)
		return int64(n), err
	})
	if err != nil {
		return err
	}
	return s.Add(cfg.InvitationCleanup, "cleanup-invitations", invitations.CleanupExpired)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Sugar().Debugw(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Sugar().Errorw(msg, append(kv, "error", err)...)
}
