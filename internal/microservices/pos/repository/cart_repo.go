package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"salez/internal/common/logger"
	"salez/internal/docstore"
	"salez/internal/domain"
)

type CartRepositoryInterface interface {
	Get(ctx context.Context, cartID string) (domain.Cart, error)
	// Mutate applies fn to the cart inside a transaction. fn reports whether
	// it changed anything; unchanged carts are not written.
	Mutate(ctx context.Context, cartID string, fn func(*domain.Cart) bool) (domain.Cart, error)
	Delete(ctx context.Context, cartID string) error
	Watch(ctx context.Context, cartID string) (*docstore.Subscription, error)
	Decode(snap docstore.Snapshot) domain.Cart
	// Join resolves the cart lines against the current food items.
	Join(ctx context.Context, cart domain.Cart) ([]domain.CartLine, error)
}

type CartRepository struct {
	store docstore.Store
	lg    *logger.Logger
}

func NewCartRepository(store docstore.Store, lg *logger.Logger) CartRepositoryInterface {
	return &CartRepository{store: store, lg: lg}
}

type rawCart struct {
	Items []json.RawMessage `json:"items"`
}

// decodeCart decodes line by line: a malformed line is dropped, the rest of
// the cart survives. A missing document is an empty cart.
func decodeCart(lg *logger.Logger, snap docstore.Snapshot) domain.Cart {
	var cart domain.Cart
	if !snap.Exists {
		return cart
	}
	var raw rawCart
	if err := json.Unmarshal(snap.Data, &raw); err != nil {
		lg.Warn("cart_dropped", map[string]any{"cart_id": snap.ID, "error": err.Error()})
		return cart
	}
	for i, line := range raw.Items {
		var item domain.CartItem
		err := json.Unmarshal(line, &item)
		if err == nil {
			err = item.Validate()
		}
		if err != nil {
			lg.Warn("cart_line_dropped", map[string]any{"cart_id": snap.ID, "index": i, "error": err.Error()})
			continue
		}
		cart.Items = append(cart.Items, item)
	}
	return cart
}

func (cr *CartRepository) Decode(snap docstore.Snapshot) domain.Cart { return decodeCart(cr.lg, snap) }

func (cr *CartRepository) Join(ctx context.Context, cart domain.Cart) ([]domain.CartLine, error) {
	lines, err := JoinCart(ctx, cr.lg, cr.store.Get, cart)
	if err != nil {
		return nil, fmt.Errorf("join cart: %w", err)
	}
	return lines, nil
}

func (cr *CartRepository) Get(ctx context.Context, cartID string) (domain.Cart, error) {
	snap, err := cr.store.Get(ctx, domain.CollCarts, cartID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart %s: %w", cartID, err)
	}
	return cr.Decode(snap), nil
}

func (cr *CartRepository) Mutate(ctx context.Context, cartID string, fn func(*domain.Cart) bool) (domain.Cart, error) {
	var out domain.Cart
	err := cr.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, domain.CollCarts, cartID)
		if err != nil {
			return err
		}
		cart := cr.Decode(snap)
		if !fn(&cart) {
			out = cart
			return nil
		}
		if cart.Items == nil {
			cart.Items = []domain.CartItem{}
		}
		out = cart
		return tx.Set(ctx, domain.CollCarts, cartID, cart)
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("update cart %s: %w", cartID, err)
	}
	return out, nil
}

func (cr *CartRepository) Delete(ctx context.Context, cartID string) error {
	if err := cr.store.Delete(ctx, domain.CollCarts, cartID); err != nil {
		return fmt.Errorf("delete cart %s: %w", cartID, err)
	}
	return nil
}

func (cr *CartRepository) Watch(ctx context.Context, cartID string) (*docstore.Subscription, error) {
	return cr.store.WatchDoc(ctx, domain.CollCarts, cartID)
}
