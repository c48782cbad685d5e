package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"salez/internal/common/httpx"
	"salez/internal/common/logger"
	"salez/internal/domain"
	"salez/internal/microservices/pos/service"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// frame is one websocket message: the observed value or the error of the
// refresh that produced it.
type frame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// LiveHandler streams observed state over websockets, one JSON frame per
// change.
type LiveHandler struct {
	carts    service.CartServiceInterface
	orders   service.OrderServiceInterface
	sessions sessions
	lg       *logger.Logger
	upgrader websocket.Upgrader
}

func NewLiveHandler(carts service.CartServiceInterface, orders service.OrderServiceInterface, sess sessions, lg *logger.Logger) *LiveHandler {
	return &LiveHandler{
		carts:    carts,
		orders:   orders,
		sessions: sess,
		lg:       lg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The POS clients are native apps, not browsers on other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *LiveHandler) Cart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.from(r)
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	obs, err := h.carts.Observe(ctx, sess)
	if err != nil {
		errorWriter{lg: h.lg}.write(w, r, err)
		return
	}
	defer obs.Close()
	stream(ctx, cancel, h, w, r, "cart", obs)
}

// Orders streams all orders, or the orders of ?date=YYYY-MM-DD.
func (h *LiveHandler) Orders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		obs *service.Observer[[]domain.Order]
		err error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		obs, err = h.orders.ObserveDailyOrders(ctx, date)
	} else {
		obs, err = h.orders.ObserveOrders(ctx)
	}
	if err != nil {
		errorWriter{lg: h.lg}.write(w, r, err)
		return
	}
	defer obs.Close()
	stream(ctx, cancel, h, w, r, "orders", obs)
}

// stream upgrades the connection and forwards every observed value until the
// client disconnects or ctx ends.
func stream[T any](ctx context.Context, cancel context.CancelFunc, h *LiveHandler, w http.ResponseWriter, r *http.Request, kind string, obs *service.Observer[T]) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warn("ws_upgrade_failed", map[string]any{"error": err.Error(), "stream": kind})
		return
	}
	defer conn.Close()
	lg := h.lg.With(map[string]any{"stream": kind, "request_id": httpx.RequestIDFrom(r.Context())})
	lg.Info("ws_connected", nil)

	// Reader: the client sends nothing we act on, but reading is how a close
	// or a dead peer is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// WriteControl may run concurrently with WriteJSON.
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for v, err := range obs.All(ctx) {
		f := frame{Type: kind, Data: v}
		if err != nil {
			f = frame{Type: "error", Error: err.Error()}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(f); err != nil {
			break
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	lg.Info("ws_disconnected", nil)
}
