package service

import (
	"context"
	"time"

	"salez/internal/common/logger"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

type Service struct {
	CatalogService CatalogServiceInterface
	CartService    CartServiceInterface
	OrderService   OrderServiceInterface
	ClosingService ClosingServiceInterface
	ProfileService ProfileServiceInterface
}

// Events receives domain events after the store write has committed.
type Events interface {
	OrderCreated(ctx context.Context, o domain.Order) error
	DayClosed(ctx context.Context, ev domain.DayClosedEvent) error
}

type noEvents struct{}

func (noEvents) OrderCreated(context.Context, domain.Order) error       { return nil }
func (noEvents) DayClosed(context.Context, domain.DayClosedEvent) error { return nil }

// New wires the services. events may be nil when messaging is disabled; loc
// defines the calendar day used by closing.
func New(repo *repository.Repository, events Events, loc *time.Location, lg *logger.Logger) *Service {
	if events == nil {
		events = noEvents{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		CatalogService: NewCatalogService(repo.CatalogRepo, repo.OrderRepo, lg),
		CartService:    NewCartService(repo.CartRepo, repo.CatalogRepo, lg),
		OrderService:   NewOrderService(repo.OrderRepo, events, loc, lg),
		ClosingService: NewClosingService(repo.SummaryRepo, events, loc, lg),
		ProfileService: NewProfileService(repo.ProfileRepo),
	}
}
