package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"salez/internal/common/logger"
	"salez/internal/common/metrics"
	"salez/internal/docstore"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, s Session, customerName, paymentMethod string) (domain.Order, error)
	CreateOrderFromLines(ctx context.Context, customerName string, lines []domain.CartLine, paymentMethod string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	DailyOrders(ctx context.Context, date string) ([]domain.Order, error)
	ObserveOrders(ctx context.Context) (*Observer[[]domain.Order], error)
	ObserveDailyOrders(ctx context.Context, date string) (*Observer[[]domain.Order], error)
}

type OrderService struct {
	orders repository.OrderRepositoryInterface
	events Events
	loc    *time.Location
	lg     *logger.Logger
	now    func() time.Time
}

func NewOrderService(orders repository.OrderRepositoryInterface, events Events, loc *time.Location, lg *logger.Logger) OrderServiceInterface {
	return &OrderService{orders: orders, events: events, loc: loc, lg: lg, now: time.Now}
}

func newOrder(id, customerName string, lines []domain.CartLine, pm domain.PaymentMethod, at time.Time) domain.Order {
	items := make([]domain.OrderLine, len(lines))
	for i, l := range lines {
		items[i] = domain.OrderLine{
			FoodItemID: l.FoodItem.ID,
			Name:       l.FoodItem.Name,
			Price:      l.FoodItem.Price,
			Quantity:   l.Quantity,
		}
	}
	return domain.Order{
		ID:            id,
		CustomerName:  strings.TrimSpace(customerName),
		TotalPrice:    domain.LinesTotal(lines),
		OrderDate:     at,
		Items:         items,
		PaymentMethod: pm,
		Status:        domain.StatusOpen,
	}
}

// CreateOrder checks out the session cart: the order is written and the
// cart deleted together, or neither happens.
func (svc *OrderService) CreateOrder(ctx context.Context, s Session, customerName, paymentMethod string) (domain.Order, error) {
	pm, err := domain.ParsePaymentMethod(paymentMethod)
	if err != nil {
		return domain.Order{}, err
	}
	id := uuid.NewString()
	order, err := svc.orders.CreateFromCart(ctx, s.cart(), func(lines []domain.CartLine) (domain.Order, error) {
		// 1. Preconditions, in the order the cashier sees them
		if len(lines) == 0 {
			return domain.Order{}, domain.ErrEmptyCart
		}
		if strings.TrimSpace(customerName) == "" {
			return domain.Order{}, domain.ErrBlankCustomerName
		}
		// 2. Snapshot the lines with current names and prices
		return newOrder(id, customerName, lines, pm, svc.now()), nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	svc.created(ctx, order, s.Actor)
	return order, nil
}

// CreateOrderFromLines writes an order for lines supplied by the caller and
// leaves every cart untouched. No lines means nothing to do.
func (svc *OrderService) CreateOrderFromLines(ctx context.Context, customerName string, lines []domain.CartLine, paymentMethod string) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, domain.ErrBlankCustomerName
	}
	pm, err := domain.ParsePaymentMethod(paymentMethod)
	if err != nil {
		return nil, err
	}
	order := newOrder(uuid.NewString(), customerName, lines, pm, svc.now())
	if err := svc.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	svc.created(ctx, order, "")
	return &order, nil
}

func (svc *OrderService) created(ctx context.Context, o domain.Order, actor string) {
	metrics.RecordOrderCreated(o.TotalPrice)
	svc.lg.Info("order_created", map[string]any{
		"order_id":       o.ID,
		"total_price":    o.TotalPrice,
		"items":          o.ItemCount(),
		"payment_method": o.PaymentMethod,
		"actor":          actor,
	})
	if err := svc.events.OrderCreated(ctx, o); err != nil {
		svc.lg.Error("order_event_publish_failed", err, map[string]any{"order_id": o.ID})
	}
}

func (svc *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return svc.orders.List(ctx)
}

func (svc *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return svc.orders.Get(ctx, id)
}

func (svc *OrderService) DailyOrders(ctx context.Context, date string) ([]domain.Order, error) {
	start, end, err := domain.DayRange(date, svc.loc)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}
	return svc.orders.ByDateRange(ctx, start, end)
}

func (svc *OrderService) decode(_ context.Context, snaps []docstore.Snapshot) ([]domain.Order, error) {
	return svc.orders.Decode(snaps), nil
}

func (svc *OrderService) ObserveOrders(ctx context.Context) (*Observer[[]domain.Order], error) {
	sub, err := svc.orders.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch orders: %w", err)
	}
	return newObserver(sub, svc.decode), nil
}

func (svc *OrderService) ObserveDailyOrders(ctx context.Context, date string) (*Observer[[]domain.Order], error) {
	start, end, err := domain.DayRange(date, svc.loc)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}
	sub, err := svc.orders.WatchDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("watch orders of %s: %w", date, err)
	}
	return newObserver(sub, svc.decode), nil
}
