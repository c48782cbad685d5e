package repository

import (
	"salez/internal/common/logger"
	"salez/internal/connections/localstore"
	"salez/internal/docstore"
)

type Repository struct {
	CatalogRepo CatalogRepositoryInterface
	CartRepo    CartRepositoryInterface
	OrderRepo   OrderRepositoryInterface
	SummaryRepo SummaryRepositoryInterface
	ProfileRepo ProfileRepositoryInterface
}

func New(store docstore.Store, local *localstore.DB, lg *logger.Logger) *Repository {
	return &Repository{
		CatalogRepo: NewCatalogRepository(store, lg),
		CartRepo:    NewCartRepository(store, lg),
		OrderRepo:   NewOrderRepository(store, lg),
		SummaryRepo: NewSummaryRepository(store, lg),
		ProfileRepo: NewProfileRepository(local),
	}
}

// decodeList decodes every snapshot, dropping (and logging) the ones that do
// not fit the schema. setID copies the document key into the value.
func decodeList[T any](lg *logger.Logger, snaps []docstore.Snapshot, setID func(*T, string)) []T {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := s.DataTo(&v); err != nil {
			lg.Warn("document_dropped", map[string]any{
				"collection": s.Collection,
				"id":         s.ID,
				"error":      err.Error(),
			})
			continue
		}
		if setID != nil {
			setID(&v, s.ID)
		}
		out = append(out, v)
	}
	return out
}
