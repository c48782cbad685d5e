package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by repositories when an entity does not exist.
var ErrNotFound = errors.New("not found")

// BusinessError is a rejected user action. Message is shown to the user as is.
type BusinessError struct {
	Code    string
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// Conflict reports whether the error is about existing state rather than input.
func (e *BusinessError) Conflict() bool {
	switch e.Code {
	case "category_exists", "category_in_use", "food_item_id_taken":
		return true
	}
	return false
}

func businessErr(code, msg string) *BusinessError { return &BusinessError{Code: code, Message: msg} }

var (
	ErrEmptyCart          = businessErr("empty_cart", "Keranjang kosong")
	ErrBlankCustomerName  = businessErr("blank_customer_name", "Nama pelanggan harus diisi")
	ErrNoOpenOrders       = businessErr("no_open_orders", "Tidak ada pesanan terbuka untuk hari ini")
	ErrInvalidOrderTotal  = businessErr("invalid_order_total", "Ada pesanan dengan total harga tidak valid")
	ErrBlankCategoryName  = businessErr("blank_category_name", "Nama kategori harus diisi")
	ErrCategoryInUse      = businessErr("category_in_use", "Tidak dapat menghapus kategori karena memiliki menu terkait")
	ErrCategoryNotFound   = businessErr("category_not_found", "Kategori tidak ditemukan")
	ErrBlankFoodItemName  = businessErr("blank_food_item_name", "Nama menu harus diisi")
	ErrInvalidFoodItemID  = businessErr("invalid_food_item_id", "ID menu tidak valid")
	ErrInvalidPrice       = businessErr("invalid_price", "Harga menu tidak valid")
	ErrBlankSearchKeyword = businessErr("blank_search_keyword", "Kata kunci pencarian harus diisi")
	ErrBlankUsername      = businessErr("blank_username", "Nama pengguna harus diisi")
	ErrInvalidDate        = businessErr("invalid_date", "Format tanggal harus YYYY-MM-DD")
)

func ErrCategoryExists(name string) *BusinessError {
	return businessErr("category_exists", fmt.Sprintf("Kategori '%s' sudah ada", name))
}

func ErrFoodItemIDTaken(id int64) *BusinessError {
	return businessErr("food_item_id_taken", fmt.Sprintf("ID menu '%d' sudah digunakan", id))
}

func ErrUnknownPaymentMethod(method string) *BusinessError {
	return businessErr("unknown_payment_method", fmt.Sprintf("Metode pembayaran '%s' tidak dikenal", method))
}

func IsBusiness(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
