package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Document store collections.
const (
	CollCategories     = "categories"
	CollFoodItems      = "food_items"
	CollCarts          = "carts"
	CollOrders         = "orders"
	CollDailySummaries = "daily_summaries"
)

const DefaultCartID = "current_cart"

// DateLayout is the key format of daily summaries and date parameters.
const DateLayout = "2006-01-02"

type Role string

const (
	RoleCashier Role = "CASHIER"
	RoleChef    Role = "CHEF"
	RoleManager Role = "MANAGER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCashier, RoleChef, RoleManager:
		return true
	}
	return false
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is empty")
	}
	return nil
}

type FoodItem struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Price          float64  `json:"price"`
	ImageURL       *string  `json:"imageUrl,omitempty"`
	CategoryID     string   `json:"categoryId"`
	SearchKeywords []string `json:"searchKeywords"`
	SalesCount     int      `json:"salesCount"`
}

func (f *FoodItem) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("food item name is empty")
	}
	if f.Price < 0 || math.IsNaN(f.Price) {
		return fmt.Errorf("food item price %v is negative", f.Price)
	}
	return nil
}

// DocID is the document key of the item.
func (f FoodItem) DocID() string { return FoodItemDocID(f.ID) }

func FoodItemDocID(id int64) string { return strconv.FormatInt(id, 10) }

// UnitPrice is the integer price used for totals.
func (f FoodItem) UnitPrice() int64 { return int64(math.Floor(f.Price)) }

// Keywords returns the lowercased name split on spaces.
func Keywords(name string) []string {
	parts := strings.Split(strings.ToLower(name), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CartItem is one line of the cart document. ID is local to the cart.
type CartItem struct {
	ID         int   `json:"id"`
	FoodItemID int64 `json:"foodItemId"`
	Quantity   int   `json:"quantity"`
}

func (c *CartItem) Validate() error {
	if c.FoodItemID < 1 {
		return fmt.Errorf("cart line %d: food item id %d is invalid", c.ID, c.FoodItemID)
	}
	if c.Quantity < 1 {
		return fmt.Errorf("cart line %d: quantity %d is not positive", c.ID, c.Quantity)
	}
	return nil
}

type Cart struct {
	Items []CartItem `json:"items"`
}

// Add increments the line for foodItemID or appends a new one with id
// max+1.
func (c *Cart) Add(foodItemID int64) {
	maxID := 0
	for i := range c.Items {
		if c.Items[i].FoodItemID == foodItemID {
			c.Items[i].Quantity++
			return
		}
		maxID = max(maxID, c.Items[i].ID)
	}
	c.Items = append(c.Items, CartItem{ID: maxID + 1, FoodItemID: foodItemID, Quantity: 1})
}

// Decrement lowers the line quantity, removing it at zero. Reports whether
// the cart changed.
func (c *Cart) Decrement(foodItemID int64) bool {
	for i := range c.Items {
		if c.Items[i].FoodItemID != foodItemID {
			continue
		}
		if c.Items[i].Quantity > 1 {
			c.Items[i].Quantity--
		} else {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		return true
	}
	return false
}

// CartLine is a cart item joined with its current food item.
type CartLine struct {
	CartItemID int      `json:"cartItemId"`
	FoodItem   FoodItem `json:"foodItem"`
	Quantity   int      `json:"quantity"`
	Subtotal   int64    `json:"subtotal"`
}

func NewCartLine(item CartItem, food FoodItem) CartLine {
	return CartLine{
		CartItemID: item.ID,
		FoodItem:   food,
		Quantity:   item.Quantity,
		Subtotal:   food.UnitPrice() * int64(item.Quantity),
	}
}

func LinesTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.FoodItem.UnitPrice() * int64(l.Quantity)
	}
	return total
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentDebit    PaymentMethod = "debit"
	PaymentCredit   PaymentMethod = "credit"
	PaymentTransfer PaymentMethod = "transfer"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	pm := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch pm {
	case PaymentCash, PaymentQRIS, PaymentDebit, PaymentCredit, PaymentTransfer:
		return pm, nil
	}
	return "", ErrUnknownPaymentMethod(s)
}

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// OrderLine is the denormalized copy of a cart line kept on the order.
type OrderLine struct {
	FoodItemID int64   `json:"foodItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

type Order struct {
	ID            string        `json:"id"`
	CustomerName  string        `json:"customerName"`
	TotalPrice    int64         `json:"totalPrice"`
	OrderDate     time.Time     `json:"orderDate"`
	Items         []OrderLine   `json:"items"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Status        string        `json:"status"`
}

func (o *Order) Validate() error {
	if o.Status != StatusOpen && o.Status != StatusClosed {
		return fmt.Errorf("order status %q is invalid", o.Status)
	}
	if o.OrderDate.IsZero() {
		return errors.New("order date is missing")
	}
	return nil
}

// ItemCount is the sum of line quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

type DailySummary struct {
	Date              string    `json:"date"`
	TotalRevenue      int64     `json:"totalRevenue"`
	TotalMenuItems    int       `json:"totalMenuItems"`
	TotalCustomers    int       `json:"totalCustomers"`
	ClosedAt          time.Time `json:"closedAt"`
	PreviousRevenue   *int64    `json:"previousRevenue,omitempty"`
	PreviousMenuItems *int      `json:"previousMenuItems,omitempty"`
	PreviousCustomers *int      `json:"previousCustomers,omitempty"`
}

func (d *DailySummary) Validate() error {
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return fmt.Errorf("summary date %q: %w", d.Date, err)
	}
	return nil
}

// Summarize aggregates closed orders of one day.
func Summarize(date string, orders []Order, closedAt time.Time) DailySummary {
	s := DailySummary{Date: date, ClosedAt: closedAt}
	customers := make(map[string]struct{})
	for _, o := range orders {
		s.TotalRevenue += o.TotalPrice
		s.TotalMenuItems += o.ItemCount()
		customers[o.CustomerName] = struct{}{}
	}
	s.TotalCustomers = len(customers)
	return s
}

// WithPrevious copies the comparison values from prev.
func (d DailySummary) WithPrevious(prev *DailySummary) DailySummary {
	if prev == nil {
		return d
	}
	rev, items, cust := prev.TotalRevenue, prev.TotalMenuItems, prev.TotalCustomers
	d.PreviousRevenue, d.PreviousMenuItems, d.PreviousCustomers = &rev, &items, &cust
	return d
}

type ManagerProfile struct {
	ID        int     `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Nickname  string  `json:"nickname"`
	PhotoPath *string `json:"photoPath,omitempty"`
}

// ProfileID is the fixed key of the single manager profile.
const ProfileID = 1

// DayRange returns the first and last instant of date in loc.
func DayRange(date string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end, nil
}
