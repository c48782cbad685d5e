package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"salez/internal/common/auth"
	"salez/internal/domain"
	"salez/internal/microservices/pos/service"
)

// CartHeader selects a cart other than the configured default.
const CartHeader = "X-Cart-ID"

const maxCartID = 64

type sessions struct {
	defaultCart string
}

// from builds the session of a request. The cart comes from the X-Cart-ID
// header or, for websocket clients, the cart query parameter.
func (s sessions) from(r *http.Request) (service.Session, error) {
	cart := r.Header.Get(CartHeader)
	if cart == "" {
		cart = r.URL.Query().Get("cart")
	}
	if cart == "" {
		cart = s.defaultCart
	}
	if len(cart) > maxCartID {
		return service.Session{}, fmt.Errorf("cart id longer than %d characters", maxCartID)
	}
	sess := service.Session{CartID: cart}
	if c, ok := auth.FromContext(r.Context()); ok {
		sess.Actor, sess.Role = c.Subject, c.Role
	}
	return sess, nil
}

func param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func int64Param(r *http.Request, key string) (int64, error) {
	v, err := strconv.ParseInt(param(r, key), 10, 64)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return v, nil
}

func dateParam(r *http.Request, key string) (string, error) {
	d := param(r, key)
	if _, err := time.Parse(domain.DateLayout, d); err != nil {
		return "", fmt.Errorf("%s must be a date in YYYY-MM-DD form", key)
	}
	return d, nil
}

// atoiDefault parses s, falling back to d when s is empty or not a number.
func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
