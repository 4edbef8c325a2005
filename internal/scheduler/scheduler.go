package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// Recomputer runs a similarity recompute.
type Recomputer interface {
	RecomputeCorpus(ctx context.Context, req service.RecomputeRequest, progress service.ProgressFunc) (*service.RecomputeReport, error)
}

// Scheduler refreshes similarity scores on a fixed interval. Runs never
// overlap; a tick that arrives while a run is active is skipped.
type Scheduler struct {
	s      gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers a periodic recompute with the given method ("" = service default).
func New(r Recomputer, interval time.Duration, method string, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("recompute interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	sch := &Scheduler{s: s, ctx: ctx, cancel: cancel}

	req := service.RecomputeRequest{Method: domain.ComputationMethod(method)}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			report, err := r.RecomputeCorpus(sch.ctx, req, nil)
			if err != nil {
				slog.Error("scheduled recompute failed", "error", err)
				return
			}
			slog.Info("scheduled recompute done", "stored", report.Stored, "pruned", report.Pruned,
				"failed", report.Failed, "cancelled", report.Cancelled)
		}),
		gocron.WithName("similarity-recompute"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("register recompute job: %w", err)
	}
	return sch, nil
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.s.Start()
}

// Stop cancels an active run between pairs and waits for the scheduler.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.s.Shutdown()
}
