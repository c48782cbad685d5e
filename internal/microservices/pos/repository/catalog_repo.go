package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"salez/internal/common/logger"
	"salez/internal/docstore"
	"salez/internal/domain"
)

type CatalogRepositoryInterface interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CategoryByName(ctx context.Context, name string) (domain.Category, error)
	AddCategory(ctx context.Context, name string) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	WatchCategories(ctx context.Context) (*docstore.Subscription, error)
	DecodeCategories(snaps []docstore.Snapshot) []domain.Category

	ListFoodItems(ctx context.Context) ([]domain.FoodItem, error)
	FoodItemsByCategoryID(ctx context.Context, categoryID string) ([]domain.FoodItem, error)
	TopSelling(ctx context.Context, n int) ([]domain.FoodItem, error)
	SearchByKeyword(ctx context.Context, keyword string) ([]domain.FoodItem, error)
	GetFoodItem(ctx context.Context, id int64) (domain.FoodItem, error)
	AddFoodItem(ctx context.Context, item domain.FoodItem) error
	UpdateFoodItem(ctx context.Context, item domain.FoodItem) error
	DeleteFoodItem(ctx context.Context, id int64) error
	WatchFoodItems(ctx context.Context) (*docstore.Subscription, error)
	DecodeFoodItems(snaps []docstore.Snapshot) []domain.FoodItem
}

type CatalogRepository struct {
	store docstore.Store
	lg    *logger.Logger
}

func NewCatalogRepository(store docstore.Store, lg *logger.Logger) CatalogRepositoryInterface {
	return &CatalogRepository{store: store, lg: lg}
}

func setCategoryID(c *domain.Category, id string) { c.ID = id }

func (cr *CatalogRepository) DecodeCategories(snaps []docstore.Snapshot) []domain.Category {
	return decodeList(cr.lg, snaps, setCategoryID)
}

func (cr *CatalogRepository) DecodeFoodItems(snaps []docstore.Snapshot) []domain.FoodItem {
	return decodeList[domain.FoodItem](cr.lg, snaps, nil)
}

func categoriesQuery() docstore.Query {
	return docstore.From(domain.CollCategories).Order("name", false)
}

func (cr *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	snaps, err := cr.store.Query(ctx, categoriesQuery())
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cr.DecodeCategories(snaps), nil
}

func (cr *CatalogRepository) CategoryByName(ctx context.Context, name string) (domain.Category, error) {
	snaps, err := cr.store.Query(ctx, docstore.From(domain.CollCategories).Where("name", docstore.OpEq, name).Take(1))
	if err != nil {
		return domain.Category{}, fmt.Errorf("category by name: %w", err)
	}
	cats := cr.DecodeCategories(snaps)
	if len(cats) == 0 {
		return domain.Category{}, fmt.Errorf("category %q: %w", name, domain.ErrNotFound)
	}
	return cats[0], nil
}

// AddCategory checks name uniqueness (case-insensitive) and inserts in one
// transaction, so two concurrent adds of the same name cannot both succeed.
func (cr *CatalogRepository) AddCategory(ctx context.Context, name string) (domain.Category, error) {
	cat := domain.Category{ID: uuid.NewString(), Name: name}
	err := cr.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snaps, err := tx.Query(ctx, docstore.From(domain.CollCategories))
		if err != nil {
			return err
		}
		for _, c := range cr.DecodeCategories(snaps) {
			if strings.EqualFold(c.Name, name) {
				return domain.ErrCategoryExists(name)
			}
		}
		return tx.Set(ctx, domain.CollCategories, cat.ID, cat)
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("add category: %w", err)
	}
	return cat, nil
}

func (cr *CatalogRepository) DeleteCategory(ctx context.Context, id string) error {
	err := cr.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, domain.CollCategories, id)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
		}
		refs, err := tx.Query(ctx, docstore.From(domain.CollFoodItems).Where("categoryId", docstore.OpEq, id).Take(1))
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return domain.ErrCategoryInUse
		}
		return tx.Delete(ctx, domain.CollCategories, id)
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (cr *CatalogRepository) WatchCategories(ctx context.Context) (*docstore.Subscription, error) {
	return cr.store.WatchQuery(ctx, categoriesQuery())
}

func foodItemsQuery() docstore.Query { return docstore.From(domain.CollFoodItems) }

func (cr *CatalogRepository) queryFoodItems(ctx context.Context, q docstore.Query) ([]domain.FoodItem, error) {
	snaps, err := cr.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query food items: %w", err)
	}
	return cr.DecodeFoodItems(snaps), nil
}

func (cr *CatalogRepository) ListFoodItems(ctx context.Context) ([]domain.FoodItem, error) {
	return cr.queryFoodItems(ctx, foodItemsQuery())
}

func (cr *CatalogRepository) FoodItemsByCategoryID(ctx context.Context, categoryID string) ([]domain.FoodItem, error) {
	return cr.queryFoodItems(ctx, foodItemsQuery().Where("categoryId", docstore.OpEq, categoryID))
}

func (cr *CatalogRepository) TopSelling(ctx context.Context, n int) ([]domain.FoodItem, error) {
	return cr.queryFoodItems(ctx, foodItemsQuery().Order("salesCount", true).Take(n))
}

func (cr *CatalogRepository) SearchByKeyword(ctx context.Context, keyword string) ([]domain.FoodItem, error) {
	return cr.queryFoodItems(ctx, foodItemsQuery().Where("searchKeywords", docstore.OpArrayContains, keyword))
}

// GetFoodItem returns a wrapped domain.ErrNotFound for a missing item and a
// *docstore.DecodeError for a malformed one.
func (cr *CatalogRepository) GetFoodItem(ctx context.Context, id int64) (domain.FoodItem, error) {
	snap, err := cr.store.Get(ctx, domain.CollFoodItems, domain.FoodItemDocID(id))
	if err != nil {
		return domain.FoodItem{}, fmt.Errorf("get food item %d: %w", id, err)
	}
	return decodeFoodItem(snap)
}

func decodeFoodItem(snap docstore.Snapshot) (domain.FoodItem, error) {
	if !snap.Exists {
		return domain.FoodItem{}, fmt.Errorf("food item %s: %w", snap.ID, domain.ErrNotFound)
	}
	var item domain.FoodItem
	if err := snap.DataTo(&item); err != nil {
		return domain.FoodItem{}, err
	}
	return item, nil
}

func (cr *CatalogRepository) AddFoodItem(ctx context.Context, item domain.FoodItem) error {
	err := cr.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		cat, err := tx.Get(ctx, domain.CollCategories, item.CategoryID)
		if err != nil {
			return err
		}
		if !cat.Exists {
			return domain.ErrCategoryNotFound
		}
		cur, err := tx.Get(ctx, domain.CollFoodItems, item.DocID())
		if err != nil {
			return err
		}
		if cur.Exists {
			return domain.ErrFoodItemIDTaken(item.ID)
		}
		return tx.Set(ctx, domain.CollFoodItems, item.DocID(), item)
	})
	if err != nil {
		return fmt.Errorf("add food item: %w", err)
	}
	return nil
}

func (cr *CatalogRepository) UpdateFoodItem(ctx context.Context, item domain.FoodItem) error {
	err := cr.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		cur, err := tx.Get(ctx, domain.CollFoodItems, item.DocID())
		if err != nil {
			return err
		}
		if !cur.Exists {
			return fmt.Errorf("food item %d: %w", item.ID, domain.ErrNotFound)
		}
		cat, err := tx.Get(ctx, domain.CollCategories, item.CategoryID)
		if err != nil {
			return err
		}
		if !cat.Exists {
			return domain.ErrCategoryNotFound
		}
		return tx.Set(ctx, domain.CollFoodItems, item.DocID(), item)
	})
	if err != nil {
		return fmt.Errorf("update food item: %w", err)
	}
	return nil
}

func (cr *CatalogRepository) DeleteFoodItem(ctx context.Context, id int64) error {
	if err := cr.store.Delete(ctx, domain.CollFoodItems, domain.FoodItemDocID(id)); err != nil {
		return fmt.Errorf("delete food item %d: %w", id, err)
	}
	return nil
}

func (cr *CatalogRepository) WatchFoodItems(ctx context.Context) (*docstore.Subscription, error) {
	return cr.store.WatchQuery(ctx, foodItemsQuery())
}
