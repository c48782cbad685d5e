package domain

type CreateOrderRequest struct {
	CustomerName  string `json:"customer_name"`
	PaymentMethod string `json:"payment_method"`
}

type AddCategoryRequest struct {
	Name string `json:"name"`
}

type FoodItemRequest struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    *string `json:"image_url,omitempty"`
	CategoryID  string  `json:"category_id"`
	SalesCount  int     `json:"sales_count"`
}

func (r FoodItemRequest) FoodItem() FoodItem {
	return FoodItem{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		ImageURL:    r.ImageURL,
		CategoryID:  r.CategoryID,
		SalesCount:  r.SalesCount,
	}
}

type CartView struct {
	Items []CartLine `json:"items"`
	Total int64      `json:"total"`
	Count int        `json:"count"`
}

func NewCartView(lines []CartLine) CartView {
	if lines == nil {
		lines = []CartLine{}
	}
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return CartView{Items: lines, Total: LinesTotal(lines), Count: n}
}

type PopularItem struct {
	FoodItem FoodItem `json:"food_item"`
	Quantity int      `json:"quantity"`
}

type ProfileRequest struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Nickname  string  `json:"nickname"`
	PhotoPath *string `json:"photo_path,omitempty"`
}
