package repository

import (
	"context"
	"fmt"
	"time"

	"salez/internal/common/logger"
	"salez/internal/docstore"
	"salez/internal/domain"
)

// BuildOrder turns the joined cart lines into the order to write. Returning an
// error aborts the checkout with nothing written.
type BuildOrder func(lines []domain.CartLine) (domain.Order, error)

type OrderRepositoryInterface interface {
	// CreateFromCart reads the cart and its food items, writes the order and
	// deletes the cart in one transaction.
	CreateFromCart(ctx context.Context, cartID string, build BuildOrder) (domain.Order, error)
	Create(ctx context.Context, order domain.Order) error
	List(ctx context.Context) ([]domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	ByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error)
	Watch(ctx context.Context) (*docstore.Subscription, error)
	WatchDateRange(ctx context.Context, start, end time.Time) (*docstore.Subscription, error)
	Decode(snaps []docstore.Snapshot) []domain.Order
}

type OrderRepository struct {
	store docstore.Store
	lg    *logger.Logger
}

func NewOrderRepository(store docstore.Store, lg *logger.Logger) OrderRepositoryInterface {
	return &OrderRepository{store: store, lg: lg}
}

func setOrderID(o *domain.Order, id string) { o.ID = id }

func (r *OrderRepository) Decode(snaps []docstore.Snapshot) []domain.Order {
	return decodeList(r.lg, snaps, setOrderID)
}

func ordersQuery() docstore.Query {
	return docstore.From(domain.CollOrders).Order("orderDate", true)
}

func dayQuery(start, end time.Time) docstore.Query {
	return ordersQuery().
		Where("orderDate", docstore.OpGte, start).
		Where("orderDate", docstore.OpLte, end)
}

// JoinCart resolves every cart line against its food item. Lines whose food
// item is missing or malformed are dropped.
func JoinCart(ctx context.Context, lg *logger.Logger, get func(ctx context.Context, coll, id string) (docstore.Snapshot, error), cart domain.Cart) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		snap, err := get(ctx, domain.CollFoodItems, domain.FoodItemDocID(item.FoodItemID))
		if err != nil {
			return nil, err
		}
		food, err := decodeFoodItem(snap)
		if err != nil {
			lg.Debug("cart_line_unresolved", map[string]any{
				"food_item_id": item.FoodItemID,
				"error":        err.Error(),
			})
			continue
		}
		lines = append(lines, domain.NewCartLine(item, food))
	}
	return lines, nil
}

func (r *OrderRepository) CreateFromCart(ctx context.Context, cartID string, build BuildOrder) (domain.Order, error) {
	var order domain.Order
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, domain.CollCarts, cartID)
		if err != nil {
			return err
		}
		lines, err := JoinCart(ctx, r.lg, tx.Get, decodeCart(r.lg, snap))
		if err != nil {
			return err
		}
		order, err = build(lines)
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, domain.CollOrders, order.ID, order); err != nil {
			return err
		}
		return tx.Delete(ctx, domain.CollCarts, cartID)
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("checkout cart %s: %w", cartID, err)
	}
	return order, nil
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if err := r.store.Create(ctx, domain.CollOrders, order.ID, order); err != nil {
		return fmt.Errorf("create order %s: %w", order.ID, err)
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	snaps, err := r.store.Query(ctx, ordersQuery())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return r.Decode(snaps), nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	snap, err := r.store.Get(ctx, domain.CollOrders, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if !snap.Exists {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	var o domain.Order
	if err := snap.DataTo(&o); err != nil {
		return domain.Order{}, err
	}
	o.ID = snap.ID
	return o, nil
}

func (r *OrderRepository) ByDateRange(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	snaps, err := r.store.Query(ctx, dayQuery(start, end))
	if err != nil {
		return nil, fmt.Errorf("orders between %s and %s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}
	return r.Decode(snaps), nil
}

func (r *OrderRepository) Watch(ctx context.Context) (*docstore.Subscription, error) {
	return r.store.WatchQuery(ctx, ordersQuery())
}

func (r *OrderRepository) WatchDateRange(ctx context.Context, start, end time.Time) (*docstore.Subscription, error) {
	return r.store.WatchQuery(ctx, dayQuery(start, end))
}
