package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"nasi", "goreng", "spesial"}, Keywords("Nasi Goreng  Spesial"))
	assert.Empty(t, Keywords(""))
}

func TestCartAddAppendsWithNextID(t *testing.T) {
	var c Cart
	c.Add(7)
	c.Add(9)
	c.Add(7)
	assert.Equal(t, []CartItem{
		{ID: 1, FoodItemID: 7, Quantity: 2},
		{ID: 2, FoodItemID: 9, Quantity: 1},
	}, c.Items)

	c.Items = []CartItem{{ID: 5, FoodItemID: 1, Quantity: 1}}
	c.Add(2)
	assert.Equal(t, 6, c.Items[1].ID)
}

func TestCartDecrementRemovesAtOne(t *testing.T) {
	c := Cart{Items: []CartItem{{ID: 1, FoodItemID: 1, Quantity: 2}, {ID: 2, FoodItemID: 2, Quantity: 1}}}

	assert.True(t, c.Decrement(2))
	assert.Equal(t, []CartItem{{ID: 1, FoodItemID: 1, Quantity: 2}}, c.Items)
	assert.False(t, c.Decrement(42))
}

func TestCartQuantityIsAdditionsMinusDecrementsClamped(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 50; run++ {
		var c Cart
		want := map[int64]int{}
		for step := 0; step < 40; step++ {
			id := int64(r.IntN(4) + 1)
			if r.IntN(2) == 0 {
				c.Add(id)
				want[id]++
			} else {
				c.Decrement(id)
				if want[id] > 0 {
					want[id]--
				}
			}
		}
		got := map[int64]int{}
		for _, it := range c.Items {
			require.Positive(t, it.Quantity)
			got[it.FoodItemID] = it.Quantity
		}
		for id, q := range want {
			if q == 0 {
				assert.NotContains(t, got, id)
				continue
			}
			assert.Equal(t, q, got[id])
		}
	}
}

func TestCartAddThenDecrementRoundTrip(t *testing.T) {
	base := Cart{Items: []CartItem{{ID: 1, FoodItemID: 1, Quantity: 3}, {ID: 4, FoodItemID: 2, Quantity: 1}}}
	for _, id := range []int64{1, 2, 3} {
		c := Cart{Items: append([]CartItem(nil), base.Items...)}
		c.Add(id)
		c.Decrement(id)
		assert.Equal(t, base.Items, c.Items, "food item %d", id)
	}
}

func TestLinesTotalFloorsPrice(t *testing.T) {
	lines := []CartLine{
		NewCartLine(CartItem{ID: 1, FoodItemID: 1, Quantity: 2}, FoodItem{ID: 1, Name: "A", Price: 10000.9}),
		NewCartLine(CartItem{ID: 2, FoodItemID: 2, Quantity: 3}, FoodItem{ID: 2, Name: "B", Price: 5000}),
	}
	assert.EqualValues(t, 20000, lines[0].Subtotal)
	assert.EqualValues(t, 35000, LinesTotal(lines))

	v := NewCartView(lines)
	assert.Equal(t, 5, v.Count)
	assert.NotNil(t, NewCartView(nil).Items)
}

func TestSummarizeDistinctCustomers(t *testing.T) {
	at := time.Date(2026, 3, 4, 21, 0, 0, 0, time.UTC)
	orders := []Order{
		{CustomerName: "Ana", TotalPrice: 50000, Items: []OrderLine{{Quantity: 2}, {Quantity: 1}}},
		{CustomerName: "Ana", TotalPrice: 75000, Items: []OrderLine{{Quantity: 4}}},
	}
	s := Summarize("2026-03-04", orders, at)
	assert.EqualValues(t, 125000, s.TotalRevenue)
	assert.Equal(t, 7, s.TotalMenuItems)
	assert.Equal(t, 1, s.TotalCustomers)
	assert.Nil(t, s.PreviousRevenue)

	prev := DailySummary{Date: "2026-03-03", TotalRevenue: 90000, TotalMenuItems: 5, TotalCustomers: 3}
	s = s.WithPrevious(&prev)
	require.NotNil(t, s.PreviousRevenue)
	assert.EqualValues(t, 90000, *s.PreviousRevenue)
	assert.Equal(t, 3, *s.PreviousCustomers)
}

func TestDayRange(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	start, end, err := DayRange("2026-03-04", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 3, 4, 23, 59, 59, 999999999, loc), end)

	_, _, err = DayRange("04/03/2026", loc)
	assert.Error(t, err)
}

func TestParsePaymentMethod(t *testing.T) {
	pm, err := ParsePaymentMethod(" QRIS ")
	require.NoError(t, err)
	assert.Equal(t, PaymentQRIS, pm)

	_, err = ParsePaymentMethod("barter")
	be, ok := IsBusiness(err)
	require.True(t, ok)
	assert.Equal(t, "unknown_payment_method", be.Code)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&FoodItem{Price: 1}).Validate())
	assert.Error(t, (&CartItem{FoodItemID: 1}).Validate())
	assert.Error(t, (&Order{Status: "pending", OrderDate: time.Now()}).Validate())
	assert.NoError(t, (&Order{Status: StatusOpen, OrderDate: time.Now()}).Validate())
	assert.Error(t, (&DailySummary{Date: "yesterday"}).Validate())
	assert.True(t, ErrCategoryExists("Makanan").Conflict())
	assert.Equal(t, "Kategori 'Makanan' sudah ada", ErrCategoryExists("Makanan").Error())
}
