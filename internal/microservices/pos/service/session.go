package service

import "salez/internal/domain"

// Session identifies who acts and on which cart.
type Session struct {
	CartID string
	Actor  string
	Role   domain.Role
}

func (s Session) cart() string {
	if s.CartID == "" {
		return domain.DefaultCartID
	}
	return s.CartID
}
