package domain

import "time"

// Routing keys on the orders topic exchange.
const (
	EventOrderCreated = "order.created"
	EventDayClosed    = "day.closed"
)

type OrderCreatedEvent struct {
	OrderID       string        `json:"order_id"`
	CustomerName  string        `json:"customer_name"`
	TotalPrice    int64         `json:"total_price"`
	ItemCount     int           `json:"item_count"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
}

func NewOrderCreatedEvent(o Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		TotalPrice:    o.TotalPrice,
		ItemCount:     o.ItemCount(),
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.OrderDate,
	}
}

type DayClosedEvent struct {
	Date           string    `json:"date"`
	OrdersClosed   int       `json:"orders_closed"`
	TotalRevenue   int64     `json:"total_revenue"`
	TotalMenuItems int       `json:"total_menu_items"`
	TotalCustomers int       `json:"total_customers"`
	ClosedAt       time.Time `json:"closed_at"`
}

// Notification is the payload on the notifications fanout.
type Notification struct {
	Topic     string    `json:"topic"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Reference string    `json:"reference"`
	Timestamp time.Time `json:"timestamp"`
}
