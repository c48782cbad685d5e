package service

import (
	"context"
	"fmt"

	"salez/internal/common/logger"
	"salez/internal/common/metrics"
	"salez/internal/docstore"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

type CartServiceInterface interface {
	AddItem(ctx context.Context, s Session, foodItemID int64) (domain.CartView, error)
	DecrementItem(ctx context.Context, s Session, foodItemID int64) (domain.CartView, error)
	Clear(ctx context.Context, s Session) error
	Lines(ctx context.Context, s Session) (domain.CartView, error)
	Observe(ctx context.Context, s Session) (*Observer[domain.CartView], error)
}

type CartService struct {
	carts   repository.CartRepositoryInterface
	catalog repository.CatalogRepositoryInterface
	lg      *logger.Logger
}

func NewCartService(carts repository.CartRepositoryInterface, catalog repository.CatalogRepositoryInterface, lg *logger.Logger) CartServiceInterface {
	return &CartService{carts: carts, catalog: catalog, lg: lg}
}

func (cs *CartService) view(ctx context.Context, cart domain.Cart) (domain.CartView, error) {
	lines, err := cs.carts.Join(ctx, cart)
	if err != nil {
		return domain.CartView{}, err
	}
	return domain.NewCartView(lines), nil
}

// AddItem puts one more unit of the food item into the cart. The food item
// must exist.
func (cs *CartService) AddItem(ctx context.Context, s Session, foodItemID int64) (domain.CartView, error) {
	if _, err := cs.catalog.GetFoodItem(ctx, foodItemID); err != nil {
		return domain.CartView{}, err
	}
	cart, err := cs.carts.Mutate(ctx, s.cart(), func(c *domain.Cart) bool {
		c.Add(foodItemID)
		return true
	})
	if err != nil {
		return domain.CartView{}, err
	}
	metrics.RecordCartMutation("add")
	cs.lg.Debug("cart_item_added", map[string]any{"cart_id": s.cart(), "food_item_id": foodItemID, "actor": s.Actor})
	return cs.view(ctx, cart)
}

// DecrementItem removes one unit; a missing line is a no-op.
func (cs *CartService) DecrementItem(ctx context.Context, s Session, foodItemID int64) (domain.CartView, error) {
	cart, err := cs.carts.Mutate(ctx, s.cart(), func(c *domain.Cart) bool {
		return c.Decrement(foodItemID)
	})
	if err != nil {
		return domain.CartView{}, err
	}
	metrics.RecordCartMutation("decrement")
	return cs.view(ctx, cart)
}

func (cs *CartService) Clear(ctx context.Context, s Session) error {
	if err := cs.carts.Delete(ctx, s.cart()); err != nil {
		return err
	}
	metrics.RecordCartMutation("clear")
	cs.lg.Info("cart_cleared", map[string]any{"cart_id": s.cart(), "actor": s.Actor})
	return nil
}

func (cs *CartService) Lines(ctx context.Context, s Session) (domain.CartView, error) {
	cart, err := cs.carts.Get(ctx, s.cart())
	if err != nil {
		return domain.CartView{}, err
	}
	return cs.view(ctx, cart)
}

func (cs *CartService) Observe(ctx context.Context, s Session) (*Observer[domain.CartView], error) {
	sub, err := cs.carts.Watch(ctx, s.cart())
	if err != nil {
		return nil, fmt.Errorf("watch cart %s: %w", s.cart(), err)
	}
	return newObserver(sub, func(ctx context.Context, snaps []docstore.Snapshot) (domain.CartView, error) {
		if len(snaps) == 0 {
			return domain.NewCartView(nil), nil
		}
		return cs.view(ctx, cs.carts.Decode(snaps[0]))
	}), nil
}
