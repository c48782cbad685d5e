package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"salez/internal/common/logger"
	"salez/internal/docstore"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

const (
	DefaultRecommended = 10
	DefaultPopular     = 5
)

type CatalogServiceInterface interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ObserveCategories(ctx context.Context) (*Observer[[]domain.Category], error)
	AddCategory(ctx context.Context, name string) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListFoodItems(ctx context.Context) ([]domain.FoodItem, error)
	ObserveFoodItems(ctx context.Context) (*Observer[[]domain.FoodItem], error)
	FoodItemsByCategory(ctx context.Context, categoryName string) ([]domain.FoodItem, error)
	RecommendedItems(ctx context.Context, n int) ([]domain.FoodItem, error)
	SearchFoodItems(ctx context.Context, query string) ([]domain.FoodItem, error)
	GetFoodItem(ctx context.Context, id int64) (domain.FoodItem, error)
	AddFoodItem(ctx context.Context, item domain.FoodItem) (domain.FoodItem, error)
	UpdateFoodItem(ctx context.Context, item domain.FoodItem) (domain.FoodItem, error)
	DeleteFoodItem(ctx context.Context, id int64) error
	PopularFoodItems(ctx context.Context, n int) ([]domain.PopularItem, error)
}

type CatalogService struct {
	catalog repository.CatalogRepositoryInterface
	orders  repository.OrderRepositoryInterface
	lg      *logger.Logger
}

func NewCatalogService(catalog repository.CatalogRepositoryInterface, orders repository.OrderRepositoryInterface, lg *logger.Logger) CatalogServiceInterface {
	return &CatalogService{catalog: catalog, orders: orders, lg: lg}
}

func (cs *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return cs.catalog.ListCategories(ctx)
}

func (cs *CatalogService) ObserveCategories(ctx context.Context) (*Observer[[]domain.Category], error) {
	sub, err := cs.catalog.WatchCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch categories: %w", err)
	}
	return newObserver(sub, func(_ context.Context, snaps []docstore.Snapshot) ([]domain.Category, error) {
		return cs.catalog.DecodeCategories(snaps), nil
	}), nil
}

func (cs *CatalogService) AddCategory(ctx context.Context, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.ErrBlankCategoryName
	}
	cat, err := cs.catalog.AddCategory(ctx, name)
	if err != nil {
		return domain.Category{}, err
	}
	cs.lg.Info("category_added", map[string]any{"category_id": cat.ID, "name": cat.Name})
	return cat, nil
}

func (cs *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if err := cs.catalog.DeleteCategory(ctx, id); err != nil {
		return err
	}
	cs.lg.Info("category_deleted", map[string]any{"category_id": id})
	return nil
}

func (cs *CatalogService) ListFoodItems(ctx context.Context) ([]domain.FoodItem, error) {
	return cs.catalog.ListFoodItems(ctx)
}

func (cs *CatalogService) ObserveFoodItems(ctx context.Context) (*Observer[[]domain.FoodItem], error) {
	sub, err := cs.catalog.WatchFoodItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch food items: %w", err)
	}
	return newObserver(sub, func(_ context.Context, snaps []docstore.Snapshot) ([]domain.FoodItem, error) {
		return cs.catalog.DecodeFoodItems(snaps), nil
	}), nil
}

// FoodItemsByCategory resolves the category by name first. An unknown name
// yields an empty list.
func (cs *CatalogService) FoodItemsByCategory(ctx context.Context, categoryName string) ([]domain.FoodItem, error) {
	cat, err := cs.catalog.CategoryByName(ctx, categoryName)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.FoodItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cs.catalog.FoodItemsByCategoryID(ctx, cat.ID)
}

func (cs *CatalogService) RecommendedItems(ctx context.Context, n int) ([]domain.FoodItem, error) {
	if n <= 0 {
		n = DefaultRecommended
	}
	return cs.catalog.TopSelling(ctx, n)
}

// SearchFoodItems matches the lowercased query against the keyword lists.
// "nasi" finds "Nasi Goreng", "nas" does not.
func (cs *CatalogService) SearchFoodItems(ctx context.Context, query string) ([]domain.FoodItem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, domain.ErrBlankSearchKeyword
	}
	return cs.catalog.SearchByKeyword(ctx, q)
}

func (cs *CatalogService) GetFoodItem(ctx context.Context, id int64) (domain.FoodItem, error) {
	return cs.catalog.GetFoodItem(ctx, id)
}

func checkFoodItem(item *domain.FoodItem) error {
	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.ID < 1:
		return domain.ErrInvalidFoodItemID
	case item.Name == "":
		return domain.ErrBlankFoodItemName
	case item.Price < 0 || math.IsNaN(item.Price) || math.IsInf(item.Price, 0):
		return domain.ErrInvalidPrice
	case strings.TrimSpace(item.CategoryID) == "":
		return domain.ErrCategoryNotFound
	}
	item.SearchKeywords = domain.Keywords(item.Name)
	return nil
}

func (cs *CatalogService) AddFoodItem(ctx context.Context, item domain.FoodItem) (domain.FoodItem, error) {
	if err := checkFoodItem(&item); err != nil {
		return domain.FoodItem{}, err
	}
	if err := cs.catalog.AddFoodItem(ctx, item); err != nil {
		return domain.FoodItem{}, err
	}
	cs.lg.Info("food_item_added", map[string]any{"food_item_id": item.ID, "name": item.Name})
	return item, nil
}

func (cs *CatalogService) UpdateFoodItem(ctx context.Context, item domain.FoodItem) (domain.FoodItem, error) {
	if err := checkFoodItem(&item); err != nil {
		return domain.FoodItem{}, err
	}
	if err := cs.catalog.UpdateFoodItem(ctx, item); err != nil {
		return domain.FoodItem{}, err
	}
	cs.lg.Info("food_item_updated", map[string]any{"food_item_id": item.ID})
	return item, nil
}

func (cs *CatalogService) DeleteFoodItem(ctx context.Context, id int64) error {
	if err := cs.catalog.DeleteFoodItem(ctx, id); err != nil {
		return err
	}
	cs.lg.Info("food_item_deleted", map[string]any{"food_item_id": id})
	return nil
}

// PopularFoodItems ranks food items by quantity sold over all orders. Items
// that no longer exist are left out.
func (cs *CatalogService) PopularFoodItems(ctx context.Context, n int) ([]domain.PopularItem, error) {
	if n <= 0 {
		n = DefaultPopular
	}
	orders, err := cs.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	sold := make(map[int64]int)
	for _, o := range orders {
		for _, l := range o.Items {
			sold[l.FoodItemID] += l.Quantity
		}
	}
	type tally struct {
		id  int64
		qty int
	}
	ranked := make([]tally, 0, len(sold))
	for id, qty := range sold {
		ranked = append(ranked, tally{id, qty})
	}
	slices.SortFunc(ranked, func(a, b tally) int {
		if c := cmp.Compare(b.qty, a.qty); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := make([]domain.PopularItem, 0, n)
	for _, t := range ranked {
		if len(out) == n {
			break
		}
		food, err := cs.catalog.GetFoodItem(ctx, t.id)
		if errors.Is(err, domain.ErrNotFound) || docstore.IsDecodeError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PopularItem{FoodItem: food, Quantity: t.qty})
	}
	return out, nil
}
