package service

import (
	"context"
	"errors"
	"time"

	"salez/internal/common/logger"
	"salez/internal/common/metrics"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

type ClosingServiceInterface interface {
	CloseDay(ctx context.Context, date string) (domain.DailySummary, error)
	LatestSummary(ctx context.Context) (domain.DailySummary, error)
	SummaryFor(ctx context.Context, date string) (domain.DailySummary, error)
	// Today is the current calendar date in the closing time zone.
	Today() string
}

type ClosingService struct {
	summaries repository.SummaryRepositoryInterface
	events    Events
	loc       *time.Location
	lg        *logger.Logger
	now       func() time.Time
}

func NewClosingService(summaries repository.SummaryRepositoryInterface, events Events, loc *time.Location, lg *logger.Logger) ClosingServiceInterface {
	return &ClosingService{summaries: summaries, events: events, loc: loc, lg: lg, now: time.Now}
}

func (cs *ClosingService) Today() string { return cs.now().In(cs.loc).Format(domain.DateLayout) }

// CloseDay closes every open order of date and writes its summary. The
// status flip and the summary commit together; a second run on the same
// date finds no open orders.
func (cs *ClosingService) CloseDay(ctx context.Context, date string) (domain.DailySummary, error) {
	start, end, err := domain.DayRange(date, cs.loc)
	if err != nil {
		return domain.DailySummary{}, domain.ErrInvalidDate
	}
	closedAt := cs.now()
	summary, closed, err := cs.summaries.CloseDay(ctx, date, start, end,
		func(open []domain.Order, prev *domain.DailySummary) (domain.DailySummary, error) {
			if len(open) == 0 {
				return domain.DailySummary{}, domain.ErrNoOpenOrders
			}
			for _, o := range open {
				if o.TotalPrice <= 0 {
					return domain.DailySummary{}, domain.ErrInvalidOrderTotal
				}
			}
			return domain.Summarize(date, open, closedAt).WithPrevious(prev), nil
		})
	switch {
	case errors.Is(err, domain.ErrNoOpenOrders):
		metrics.RecordDayClose("no_open_orders")
		return domain.DailySummary{}, err
	case err != nil:
		metrics.RecordDayClose("error")
		return domain.DailySummary{}, err
	}
	metrics.RecordDayClose("closed")

	cs.lg.Info("day_closed", map[string]any{
		"date":          date,
		"orders_closed": len(closed),
		"total_revenue": summary.TotalRevenue,
	})
	ev := domain.DayClosedEvent{
		Date:           date,
		OrdersClosed:   len(closed),
		TotalRevenue:   summary.TotalRevenue,
		TotalMenuItems: summary.TotalMenuItems,
		TotalCustomers: summary.TotalCustomers,
		ClosedAt:       summary.ClosedAt,
	}
	if err := cs.events.DayClosed(ctx, ev); err != nil {
		cs.lg.Error("day_closed_publish_failed", err, map[string]any{"date": date})
	}
	return summary, nil
}

func (cs *ClosingService) LatestSummary(ctx context.Context) (domain.DailySummary, error) {
	return cs.summaries.Latest(ctx)
}

func (cs *ClosingService) SummaryFor(ctx context.Context, date string) (domain.DailySummary, error) {
	if _, _, err := domain.DayRange(date, cs.loc); err != nil {
		return domain.DailySummary{}, domain.ErrInvalidDate
	}
	return cs.summaries.Get(ctx, date)
}
