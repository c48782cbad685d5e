package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"salez/internal/common/logger"
	"salez/internal/domain"
)

// Scheduler closes the current day on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	closing ClosingServiceInterface
	lg      *logger.Logger
	timeout time.Duration
}

// NewScheduler parses a standard five-field cron expression evaluated in loc.
func NewScheduler(schedule string, loc *time.Location, closing ClosingServiceInterface, lg *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		closing: closing,
		lg:      lg,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.closeToday); err != nil {
		return nil, fmt.Errorf("closing schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) closeToday() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	date := s.closing.Today()
	summary, err := s.closing.CloseDay(ctx, date)
	switch {
	case errors.Is(err, domain.ErrNoOpenOrders):
		s.lg.Info("scheduled_close_skipped", map[string]any{"date": date, "reason": err.Error()})
	case err != nil:
		s.lg.Error("scheduled_close_failed", err, map[string]any{"date": date})
	default:
		s.lg.Info("scheduled_close_done", map[string]any{"date": date, "total_revenue": summary.TotalRevenue})
	}
}

// Run starts the schedule and blocks until ctx ends, then waits for a
// running close to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.lg.Info("closing_scheduler_started", map[string]any{"entries": len(s.cron.Entries())})
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.lg.Info("closing_scheduler_stopped", nil)
}
