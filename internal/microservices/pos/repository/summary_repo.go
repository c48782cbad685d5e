package repository

import (
	"context"
	"fmt"
	"time"

	"salez/internal/common/logger"
	"salez/internal/docstore"
	"salez/internal/domain"
)

// BuildSummary validates the open orders of the day and aggregates them.
// prev is the latest summary before the day, nil if there is none.
type BuildSummary func(open []domain.Order, prev *domain.DailySummary) (domain.DailySummary, error)

type SummaryRepositoryInterface interface {
	Latest(ctx context.Context) (domain.DailySummary, error)
	Get(ctx context.Context, date string) (domain.DailySummary, error)
	// CloseDay marks every open order in [start, end] as closed and writes the
	// summary under date, all in one transaction. It returns the closed orders.
	CloseDay(ctx context.Context, date string, start, end time.Time, build BuildSummary) (domain.DailySummary, []domain.Order, error)
}

type SummaryRepository struct {
	store docstore.Store
	lg    *logger.Logger
}

func NewSummaryRepository(store docstore.Store, lg *logger.Logger) SummaryRepositoryInterface {
	return &SummaryRepository{store: store, lg: lg}
}

func (r *SummaryRepository) Latest(ctx context.Context) (domain.DailySummary, error) {
	q := docstore.From(domain.CollDailySummaries).Order("closedAt", true).Take(1)
	snaps, err := r.store.Query(ctx, q)
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("latest summary: %w", err)
	}
	list := decodeList[domain.DailySummary](r.lg, snaps, nil)
	if len(list) == 0 {
		return domain.DailySummary{}, fmt.Errorf("latest summary: %w", domain.ErrNotFound)
	}
	return list[0], nil
}

func (r *SummaryRepository) Get(ctx context.Context, date string) (domain.DailySummary, error) {
	snap, err := r.store.Get(ctx, domain.CollDailySummaries, date)
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("get summary %s: %w", date, err)
	}
	if !snap.Exists {
		return domain.DailySummary{}, fmt.Errorf("summary %s: %w", date, domain.ErrNotFound)
	}
	var s domain.DailySummary
	if err := snap.DataTo(&s); err != nil {
		return domain.DailySummary{}, err
	}
	return s, nil
}

func (r *SummaryRepository) CloseDay(ctx context.Context, date string, start, end time.Time, build BuildSummary) (domain.DailySummary, []domain.Order, error) {
	var (
		summary domain.DailySummary
		closed  []domain.Order
	)
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snaps, err := tx.Query(ctx, dayQuery(start, end))
		if err != nil {
			return err
		}
		// A malformed order inside the range fails the close instead of
		// being skipped, so the summary never silently undercounts.
		open := make([]domain.Order, 0, len(snaps))
		for _, s := range snaps {
			var o domain.Order
			if err := s.DataTo(&o); err != nil {
				return err
			}
			o.ID = s.ID
			if o.Status == domain.StatusOpen {
				open = append(open, o)
			}
		}

		prevSnaps, err := tx.Query(ctx, docstore.From(domain.CollDailySummaries).
			Where("date", docstore.OpLt, date).
			Order("date", true).
			Take(1))
		if err != nil {
			return err
		}
		var prev *domain.DailySummary
		if list := decodeList[domain.DailySummary](r.lg, prevSnaps, nil); len(list) > 0 {
			prev = &list[0]
		}

		summary, err = build(open, prev)
		if err != nil {
			return err
		}
		closed = make([]domain.Order, 0, len(open))
		for _, o := range open {
			o.Status = domain.StatusClosed
			if err := tx.Set(ctx, domain.CollOrders, o.ID, o); err != nil {
				return err
			}
			closed = append(closed, o)
		}
		return tx.Set(ctx, domain.CollDailySummaries, date, summary)
	})
	if err != nil {
		return domain.DailySummary{}, nil, fmt.Errorf("close day %s: %w", date, err)
	}
	return summary, closed, nil
}
