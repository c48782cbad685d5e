package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salez/internal/common/auth"
	"salez/internal/common/httpx"
	"salez/internal/common/logger"
	"salez/internal/connections/localstore"
	"salez/internal/docstore"
	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
	"salez/internal/microservices/pos/service"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	auth    *auth.Authenticator
	tokens  map[domain.Role]string
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	lg := logger.NewWithWriter("test", io.Discard)
	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	svc := service.New(repository.New(docstore.NewMemory(), local, lg), nil, time.UTC, lg)
	a := auth.New("test-secret", false)
	api := &testAPI{
		t:       t,
		handler: Router(New(svc, domain.DefaultCartID, lg), a, RouterConfig{MaxConcurrent: 10}, lg),
		auth:    a,
		tokens:  map[domain.Role]string{},
	}
	for _, role := range []domain.Role{domain.RoleCashier, domain.RoleChef, domain.RoleManager} {
		tok, err := a.Issue(strings.ToLower(string(role)), role, time.Hour)
		require.NoError(t, err)
		api.tokens[role] = tok
	}
	return api
}

func (api *testAPI) do(role domain.Role, method, path string, body any) *httptest.ResponseRecorder {
	api.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(api.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+api.tokens[role])
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (api *testAPI) seed() domain.Category {
	rec := api.do(domain.RoleManager, http.MethodPost, "/api/v1/categories", domain.AddCategoryRequest{Name: "Makanan"})
	require.Equal(api.t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[domain.Category](api.t, rec)
	for _, f := range []domain.FoodItemRequest{
		{ID: 1, Name: "Nasi Goreng", Price: 25000, CategoryID: cat.ID},
		{ID: 2, Name: "Es Teh", Price: 5000, CategoryID: cat.ID},
	} {
		rec := api.do(domain.RoleManager, http.MethodPost, "/api/v1/food-items", f)
		require.Equal(api.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return cat
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	api := newAPI(t)
	assert.Equal(t, http.StatusOK, api.do("", http.MethodGet, "/healthz", nil).Code)
	rec := api.do("", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "salez_http_requests_total")
}

func TestRoles(t *testing.T) {
	api := newAPI(t)
	api.seed()

	assert.Equal(t, http.StatusUnauthorized, api.do("", http.MethodGet, "/api/v1/categories", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(domain.RoleChef, http.MethodGet, "/api/v1/food-items", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(domain.RoleChef, http.MethodPost, "/api/v1/cart/items/1", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(domain.RoleCashier, http.MethodPost, "/api/v1/categories",
		domain.AddCategoryRequest{Name: "Minuman"}).Code)
	assert.Equal(t, http.StatusForbidden, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/profile", nil).Code)
}

func TestCheckoutFlow(t *testing.T) {
	api := newAPI(t)
	api.seed()

	rec := api.do(domain.RoleCashier, http.MethodPost, "/api/v1/orders",
		domain.CreateOrderRequest{CustomerName: "Ana", PaymentMethod: "cash"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p := decode[httpx.Problem](t, rec)
	assert.Equal(t, "Keranjang kosong", p.Detail)

	for _, path := range []string{"/api/v1/cart/items/1", "/api/v1/cart/items/1", "/api/v1/cart/items/2", "/api/v1/cart/items/2/decrement"} {
		rec := api.do(domain.RoleCashier, http.MethodPost, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	view := decode[domain.CartView](t, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, int64(50000), view.Total)
	assert.Equal(t, 2, view.Count)

	rec = api.do(domain.RoleCashier, http.MethodPost, "/api/v1/orders",
		domain.CreateOrderRequest{CustomerName: "", PaymentMethod: "cash"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Nama pelanggan harus diisi", decode[httpx.Problem](t, rec).Detail)

	rec = api.do(domain.RoleCashier, http.MethodPost, "/api/v1/orders",
		domain.CreateOrderRequest{CustomerName: "Ana", PaymentMethod: "cash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[domain.Order](t, rec)
	assert.Equal(t, int64(50000), order.TotalPrice)

	view = decode[domain.CartView](t, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/cart", nil))
	assert.Empty(t, view.Items)

	rec = api.do(domain.RoleChef, http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode[domain.Order](t, rec).CustomerName)

	today := order.OrderDate.UTC().Format(domain.DateLayout)
	orders := decode[[]domain.Order](t, api.do(domain.RoleChef, http.MethodGet, "/api/v1/orders?date="+today, nil))
	assert.Len(t, orders, 1)

	rec = api.do(domain.RoleManager, http.MethodPost, "/api/v1/closing/"+today, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(50000), decode[domain.DailySummary](t, rec).TotalRevenue)

	rec = api.do(domain.RoleManager, http.MethodPost, "/api/v1/closing/"+today, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Tidak ada pesanan terbuka untuk hari ini", decode[httpx.Problem](t, rec).Detail)

	rec = api.do(domain.RoleManager, http.MethodGet, "/api/v1/summaries/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, today, decode[domain.DailySummary](t, rec).Date)
}

func TestCartHeaderSelectsCart(t *testing.T) {
	api := newAPI(t)
	api.seed()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items/1", nil)
	req.Header.Set("Authorization", "Bearer "+api.tokens[domain.RoleCashier])
	req.Header.Set(CartHeader, "till-2")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[domain.CartView](t, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/cart", nil))
	assert.Empty(t, view.Items)
}

func TestErrorMapping(t *testing.T) {
	api := newAPI(t)
	cat := api.seed()

	rec := api.do(domain.RoleManager, http.MethodPost, "/api/v1/categories", domain.AddCategoryRequest{Name: "makanan"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Kategori 'makanan' sudah ada", decode[httpx.Problem](t, rec).Detail)

	rec = api.do(domain.RoleManager, http.MethodDelete, "/api/v1/categories/"+cat.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusNotFound, api.do(domain.RoleCashier, http.MethodPost, "/api/v1/cart/items/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(domain.RoleCashier, http.MethodPost, "/api/v1/cart/items/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(domain.RoleChef, http.MethodGet, "/api/v1/orders/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(domain.RoleManager, http.MethodPost, "/api/v1/closing/yesterday", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(domain.RoleManager, http.MethodGet, "/api/v1/summaries/latest", nil).Code)

	rec = api.do(domain.RoleManager, http.MethodPut, "/api/v1/food-items/1", domain.FoodItemRequest{ID: 2, Name: "X", CategoryID: cat.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", strings.NewReader(`{"name":"A","extra":1}`))
	req.Header.Set("Authorization", "Bearer "+api.tokens[domain.RoleManager])
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	api := newAPI(t)
	api.seed()

	items := decode[[]domain.FoodItem](t, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/food-items?q=nasi", nil))
	require.Len(t, items, 1)
	assert.Equal(t, "Nasi Goreng", items[0].Name)

	items = decode[[]domain.FoodItem](t, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/food-items?category=Minuman", nil))
	assert.Empty(t, items)

	rec := api.do(domain.RoleManager, http.MethodPut, "/api/v1/food-items/2",
		domain.FoodItemRequest{Name: "Es Jeruk", Price: 7000, CategoryID: "missing"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusNoContent, api.do(domain.RoleManager, http.MethodDelete, "/api/v1/food-items/2", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(domain.RoleCashier, http.MethodGet, "/api/v1/food-items/2", nil).Code)

	rec = api.do(domain.RoleManager, http.MethodGet, "/api/v1/food-items/popular", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.PopularItem](t, rec))
}

func TestProfileEndpoints(t *testing.T) {
	api := newAPI(t)
	assert.Equal(t, http.StatusNotFound, api.do(domain.RoleManager, http.MethodGet, "/api/v1/profile", nil).Code)

	rec := api.do(domain.RoleManager, http.MethodPut, "/api/v1/profile", domain.ProfileRequest{Username: "sari", Nickname: "Sari"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.ManagerProfile](t, api.do(domain.RoleManager, http.MethodGet, "/api/v1/profile", nil))
	assert.Equal(t, "sari", got.Username)
}

func TestCartWebsocket(t *testing.T) {
	api := newAPI(t)
	api.seed()
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/cart?access_token=" + api.tokens[domain.RoleCashier]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	type cartFrame struct {
		Type string          `json:"type"`
		Data domain.CartView `json:"data"`
	}
	var f cartFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "cart", f.Type)
	assert.Empty(t, f.Data.Items)

	rec := api.do(domain.RoleCashier, http.MethodPost, "/api/v1/cart/items/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for f.Data.Count != 1 {
		require.NoError(t, conn.ReadJSON(&f))
	}
	assert.Equal(t, int64(25000), f.Data.Total)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/cart", nil)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}
