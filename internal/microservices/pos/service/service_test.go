package service

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salez/internal/common/logger"
	"salez/internal/connections/localstore"
	"salez/internal/docstore"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

type recordedEvents struct {
	mu     sync.Mutex
	orders []domain.Order
	closes []domain.DayClosedEvent
	err    error
}

func (r *recordedEvents) OrderCreated(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return r.err
}

func (r *recordedEvents) DayClosed(_ context.Context, ev domain.DayClosedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, ev)
	return r.err
}

type fixture struct {
	svc    *Service
	store  docstore.Store
	events *recordedEvents
	cat    domain.Category
}

var sess = Session{CartID: "till-1", Actor: "kasir", Role: domain.RoleCashier}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemory(docstore.WithMaxAttempts(50))
	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	lg := logger.NewWithWriter("test", io.Discard)
	ev := &recordedEvents{}
	svc := New(repository.New(store, local, lg), ev, time.UTC, lg)

	ctx := context.Background()
	cat, err := svc.CatalogService.AddCategory(ctx, "Makanan")
	require.NoError(t, err)
	for _, f := range []domain.FoodItem{
		{ID: 1, Name: "Nasi Goreng", Price: 25000.75, CategoryID: cat.ID, SalesCount: 7},
		{ID: 2, Name: "Mie Goreng", Price: 22000, CategoryID: cat.ID, SalesCount: 12},
		{ID: 3, Name: "Es Teh", Price: 5000, CategoryID: cat.ID, SalesCount: 30},
	} {
		_, err := svc.CatalogService.AddFoodItem(ctx, f)
		require.NoError(t, err)
	}
	return &fixture{svc: svc, store: store, events: ev, cat: cat}
}

func quantities(v domain.CartView) map[int64]int {
	out := make(map[int64]int)
	for _, l := range v.Items {
		out[l.FoodItem.ID] = l.Quantity
	}
	return out
}

func TestCartSequencesMatchCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rng := rand.New(rand.NewPCG(7, 11))

	want := map[int64]int{}
	for range 200 {
		id := int64(rng.IntN(3) + 1)
		if rng.IntN(2) == 0 {
			_, err := f.svc.CartService.AddItem(ctx, sess, id)
			require.NoError(t, err)
			want[id]++
		} else {
			_, err := f.svc.CartService.DecrementItem(ctx, sess, id)
			require.NoError(t, err)
			if want[id] > 0 {
				want[id]--
			}
		}
	}
	for id, n := range want {
		if n == 0 {
			delete(want, id)
		}
	}
	view, err := f.svc.CartService.Lines(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, want, quantities(view))
}

func TestAddThenDecrementRestoresCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CartService.AddItem(ctx, sess, 1)
	require.NoError(t, err)
	_, err = f.svc.CartService.AddItem(ctx, sess, 1)
	require.NoError(t, err)
	before, err := f.svc.CartService.AddItem(ctx, sess, 2)
	require.NoError(t, err)

	for _, id := range []int64{1, 2, 3} {
		_, err := f.svc.CartService.AddItem(ctx, sess, id)
		require.NoError(t, err)
		after, err := f.svc.CartService.DecrementItem(ctx, sess, id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}

	view, err := f.svc.CartService.DecrementItem(ctx, sess, 2)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2}, quantities(view))
	assert.Equal(t, int64(50000), view.Total)
}

func TestConcurrentAddItemLosesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CartService.AddItem(ctx, sess, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := f.svc.CartService.Lines(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{3: n}, quantities(view))
}

func TestAddUnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CartService.AddItem(context.Background(), sess, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCartDropsLinesOfDeletedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.CartService.AddItem(ctx, sess, 1)
	require.NoError(t, err)
	_, err = f.svc.CartService.AddItem(ctx, sess, 2)
	require.NoError(t, err)
	require.NoError(t, f.svc.CatalogService.DeleteFoodItem(ctx, 2))

	view, err := f.svc.CartService.Lines(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 1}, quantities(view))
}

func TestCreateOrderFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.OrderService.CreateOrder(ctx, sess, "Ana", "cash")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	for _, id := range []int64{1, 1, 3} {
		_, err := f.svc.CartService.AddItem(ctx, sess, id)
		require.NoError(t, err)
	}
	_, err = f.svc.OrderService.CreateOrder(ctx, sess, "  ", "cash")
	assert.ErrorIs(t, err, domain.ErrBlankCustomerName)
	_, err = f.svc.OrderService.CreateOrder(ctx, sess, "Ana", "cheque")
	be, ok := domain.IsBusiness(err)
	require.True(t, ok)
	assert.Equal(t, "unknown_payment_method", be.Code)

	orders, err := f.svc.OrderService.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	o, err := f.svc.OrderService.CreateOrder(ctx, sess, " Ana ", "QRIS")
	require.NoError(t, err)
	assert.Equal(t, int64(25000*2+5000), o.TotalPrice)
	assert.Equal(t, "Ana", o.CustomerName)
	assert.Equal(t, domain.PaymentQRIS, o.PaymentMethod)
	assert.Equal(t, domain.StatusOpen, o.Status)
	assert.Equal(t, 3, o.ItemCount())

	view, err := f.svc.CartService.Lines(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	got, err := f.svc.OrderService.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.TotalPrice, got.TotalPrice)
	require.Len(t, f.events.orders, 1)
	assert.Equal(t, o.ID, f.events.orders[0].ID)
}

func TestCreateOrderSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	_, err := f.svc.CartService.AddItem(ctx, sess, 2)
	require.NoError(t, err)
	_, err = f.svc.OrderService.CreateOrder(ctx, sess, "Budi", "cash")
	require.NoError(t, err)
}

func TestCreateOrderFromEmptyLinesIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.svc.OrderService.CreateOrderFromLines(ctx, "Ana", nil, "cash")
	require.NoError(t, err)
	assert.Nil(t, o)
	orders, err := f.svc.OrderService.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.events.orders)

	food, err := f.svc.CatalogService.GetFoodItem(ctx, 2)
	require.NoError(t, err)
	o, err = f.svc.OrderService.CreateOrderFromLines(ctx, "Ana",
		[]domain.CartLine{domain.NewCartLine(domain.CartItem{ID: 1, FoodItemID: 2, Quantity: 3}, food)}, "debit")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, int64(66000), o.TotalPrice)
}

func seedOrder(t *testing.T, f *fixture, id, customer string, total int64, at time.Time) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), domain.CollOrders, id, domain.Order{
		ID:            id,
		CustomerName:  customer,
		TotalPrice:    total,
		OrderDate:     at,
		Items:         []domain.OrderLine{{FoodItemID: 1, Name: "Nasi Goreng", Price: 25000, Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
		Status:        domain.StatusOpen,
	}))
}

func closingService(f *fixture, now time.Time) *ClosingService {
	cs := f.svc.ClosingService.(*ClosingService)
	cs.now = func() time.Time { return now }
	return cs
}

func TestCloseDayScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, f, "a", "Ana", 50000, day.Add(8*time.Hour))
	seedOrder(t, f, "b", "Ana", 75000, day.Add(20*time.Hour))
	cs := closingService(f, day.Add(23*time.Hour))

	sum, err := cs.CloseDay(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(125000), sum.TotalRevenue)
	assert.Equal(t, 1, sum.TotalCustomers)
	assert.Equal(t, 4, sum.TotalMenuItems)

	_, err = cs.CloseDay(ctx, "2024-05-01")
	assert.ErrorIs(t, err, domain.ErrNoOpenOrders)

	stored, err := cs.SummaryFor(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(125000), stored.TotalRevenue)

	orders, err := f.svc.OrderService.DailyOrders(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, domain.StatusClosed, o.Status)
	}
	require.Len(t, f.events.closes, 1)
	assert.Equal(t, 2, f.events.closes[0].OrdersClosed)
}

func TestCloseDayRejectsInvalidTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, f, "a", "Ana", 50000, day.Add(time.Hour))
	seedOrder(t, f, "z", "Budi", 0, day.Add(2*time.Hour))
	cs := closingService(f, day)

	_, err := cs.CloseDay(ctx, "2024-05-01")
	assert.ErrorIs(t, err, domain.ErrInvalidOrderTotal)

	o, err := f.svc.OrderService.GetOrder(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, o.Status)

	_, err = cs.CloseDay(ctx, "01-05-2024")
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestCloseDayCarriesPreviousSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, f, "a", "Ana", 50000, day.Add(time.Hour))
	seedOrder(t, f, "b", "Budi", 20000, day.AddDate(0, 0, 1).Add(time.Hour))

	_, err := closingService(f, day.Add(23*time.Hour)).CloseDay(ctx, "2024-05-01")
	require.NoError(t, err)
	sum, err := closingService(f, day.AddDate(0, 0, 1).Add(23*time.Hour)).CloseDay(ctx, "2024-05-02")
	require.NoError(t, err)
	require.NotNil(t, sum.PreviousRevenue)
	assert.Equal(t, int64(50000), *sum.PreviousRevenue)
	assert.Equal(t, 1, *sum.PreviousCustomers)

	latest, err := f.svc.ClosingService.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", latest.Date)
}

func TestSchedulerClosesToday(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	seedOrder(t, f, "a", "Ana", 50000, now)
	cs := closingService(f, now)

	s, err := NewScheduler("55 23 * * *", time.UTC, cs, logger.NewWithWriter("test", io.Discard))
	require.NoError(t, err)
	s.closeToday()
	s.closeToday() // nothing left, logged and ignored

	sum, err := cs.SummaryFor(context.Background(), now.Format(domain.DateLayout))
	require.NoError(t, err)
	assert.Equal(t, int64(50000), sum.TotalRevenue)

	_, err = NewScheduler("not a schedule", time.UTC, cs, logger.NewWithWriter("test", io.Discard))
	assert.Error(t, err)
}

func foodNames(items []domain.FoodItem) []string {
	out := make([]string, len(items))
	for i, f := range items {
		out[i] = f.Name
	}
	return out
}

func TestCatalogService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	found, err := f.svc.CatalogService.SearchFoodItems(ctx, "Nasi")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nasi Goreng"}, foodNames(found))
	found, err = f.svc.CatalogService.SearchFoodItems(ctx, "nas")
	require.NoError(t, err)
	assert.Empty(t, found)
	_, err = f.svc.CatalogService.SearchFoodItems(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrBlankSearchKeyword)

	rec, err := f.svc.CatalogService.RecommendedItems(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Es Teh", "Mie Goreng", "Nasi Goreng"}, foodNames(rec))

	byCat, err := f.svc.CatalogService.FoodItemsByCategory(ctx, "Makanan")
	require.NoError(t, err)
	assert.Len(t, byCat, 3)
	byCat, err = f.svc.CatalogService.FoodItemsByCategory(ctx, "Minuman")
	require.NoError(t, err)
	assert.Empty(t, byCat)

	_, err = f.svc.CatalogService.AddCategory(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrBlankCategoryName)
	_, err = f.svc.CatalogService.AddFoodItem(ctx, domain.FoodItem{ID: 0, Name: "X", CategoryID: f.cat.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidFoodItemID)
	_, err = f.svc.CatalogService.AddFoodItem(ctx, domain.FoodItem{ID: 9, Name: "X", Price: -1, CategoryID: f.cat.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	upd, err := f.svc.CatalogService.UpdateFoodItem(ctx, domain.FoodItem{ID: 3, Name: "Es Jeruk", Price: 6000, CategoryID: f.cat.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"es", "jeruk"}, upd.SearchKeywords)
	found, err = f.svc.CatalogService.SearchFoodItems(ctx, "jeruk")
	require.NoError(t, err)
	assert.Equal(t, []string{"Es Jeruk"}, foodNames(found))

	err = f.svc.CatalogService.DeleteCategory(ctx, f.cat.ID)
	assert.ErrorIs(t, err, domain.ErrCategoryInUse)
}

func TestPopularFoodItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lines := func(id int64, qty int) []domain.CartLine {
		food, err := f.svc.CatalogService.GetFoodItem(ctx, id)
		require.NoError(t, err)
		return []domain.CartLine{domain.NewCartLine(domain.CartItem{ID: 1, FoodItemID: id, Quantity: qty}, food)}
	}
	for _, o := range []struct {
		id  int64
		qty int
	}{{1, 2}, {2, 5}, {1, 4}, {3, 1}} {
		_, err := f.svc.OrderService.CreateOrderFromLines(ctx, "Ana", lines(o.id, o.qty), "cash")
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.CatalogService.DeleteFoodItem(ctx, 3))

	top, err := f.svc.CatalogService.PopularFoodItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(1), top[0].FoodItem.ID)
	assert.Equal(t, 6, top[0].Quantity)
	assert.Equal(t, int64(2), top[1].FoodItem.ID)
}

func TestObserveCart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	obs, err := f.svc.CartService.Observe(ctx, sess)
	require.NoError(t, err)

	views := make(chan domain.CartView, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v, err := range obs.All(ctx) {
			if err == nil {
				views <- v
			}
		}
	}()

	first := <-views
	assert.Empty(t, first.Items)

	_, err = f.svc.CartService.AddItem(ctx, sess, 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case v := <-views:
			return v.Count == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	obs.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer did not stop after Close")
	}
}

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ProfileService.GetProfile(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.ProfileService.SaveProfile(ctx, domain.ProfileRequest{Username: " "})
	assert.ErrorIs(t, err, domain.ErrBlankUsername)

	p, err := f.svc.ProfileService.SaveProfile(ctx, domain.ProfileRequest{Username: "sari", Email: "s@x.id", Nickname: "Sari"})
	require.NoError(t, err)
	got, err := f.svc.ProfileService.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, domain.ProfileID, got.ID)
}
