package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"salez/internal/common/httpx"
	"salez/internal/domain"
)

const issuer = "salez"

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// Authenticator issues and verifies HS256 role tokens. When disabled every
// request runs as MANAGER.
type Authenticator struct {
	secret   []byte
	disabled bool
	now      func() time.Time
}

func New(secret string, disabled bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), disabled: disabled, now: time.Now}
}

func (a *Authenticator) Issue(subject string, role domain.Role, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.Valid() {
		return nil, errors.New("token has no valid role")
	}
	return claims, nil
}

// bearer takes the token from the Authorization header, or from the
// access_token query parameter for websocket clients.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.disabled {
			c := &Claims{Role: domain.RoleManager}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
			return
		}
		tok := bearer(r)
		if tok == "" {
			httpx.WriteProblem(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		c, err := a.Parse(tok)
		if err != nil {
			httpx.WriteProblem(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// Require lets through only requests whose role is one of roles.
func Require(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteProblem(w, http.StatusUnauthorized, "unauthorized", "no credentials")
				return
			}
			if !slices.Contains(roles, c.Role) {
				httpx.WriteProblem(w, http.StatusForbidden, "forbidden",
					fmt.Sprintf("role %s may not access this resource", c.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
