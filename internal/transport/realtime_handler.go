package transport

import (
	"context"
	"net/http"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/middleware"
	"textile-store/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const sseHeartbeat = 25 * time.Second

// RealtimeHandler streams row changes over Server-Sent Events and WebSockets
type RealtimeHandler struct {
	broker realtime.Broker
	hub    *realtime.Hub
	logger *zap.Logger

	sseClients prometheus.Gauge
}

func NewRealtimeHandler(broker realtime.Broker, hub *realtime.Hub, reg prometheus.Registerer, logger *zap.Logger) *RealtimeHandler {
	h := &RealtimeHandler{
		broker: broker,
		hub:    hub,
		logger: logger,
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "storefront_realtime_subscribers",
			Help:        "Open realtime subscriptions.",
			ConstLabels: prometheus.Labels{"transport": "sse"},
		}),
	}
	if reg != nil {
		reg.MustRegister(h.sseClients, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "storefront_realtime_subscribers",
			Help:        "Open realtime subscriptions.",
			ConstLabels: prometheus.Labels{"transport": "websocket"},
		}, func() float64 { return float64(hub.ClientCount()) }))
	}
	return h
}

// RegisterRoutes mounts the subscription endpoints. optionalAuth identifies
// admins, who alone may follow the private tables.
func (h *RealtimeHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Route("/api/realtime/{table}", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.Events)
		r.Get("/ws", h.WebSocket)
	})
}

// subscription validates the table and event filter and checks the caller
// may follow the table.
func (h *RealtimeHandler) subscription(w http.ResponseWriter, r *http.Request) (string, domain.ChangeEvent, bool) {
	table := chi.URLParam(r, "table")
	if !realtime.Known(table) {
		middleware.RespondWithError(w, http.StatusNotFound, "unknown table")
		return "", "", false
	}
	if !realtime.Public(table) {
		if _, ok := middleware.GetUserID(r.Context()); !ok {
			middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return "", "", false
		}
		if !middleware.IsAdmin(r.Context()) {
			middleware.RespondWithError(w, http.StatusForbidden, "admin access required")
			return "", "", false
		}
	}
	event, err := realtime.ParseEvent(r.URL.Query().Get("event"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return table, event, true
}

func (h *RealtimeHandler) Events(w http.ResponseWriter, r *http.Request) {
	table, event, ok := h.subscription(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes, err := h.broker.Subscribe(ctx, table, event)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to subscribe")
		return
	}

	// The stream outlives the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("Could not clear write deadline", zap.Error(err))
	}

	stream := realtime.NewStream(w)
	if stream == nil {
		return
	}

	h.sseClients.Inc()
	defer h.sseClients.Dec()
	h.logger.Debug("SSE client subscribed", zap.String("table", table), zap.String("event", string(event)))

	if err := stream.Pipe(ctx, changes, sseHeartbeat); err != nil {
		h.logger.Debug("SSE client gone", zap.String("table", table), zap.Error(err))
	}
}

func (h *RealtimeHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	table, event, ok := h.subscription(w, r)
	if !ok {
		return
	}
	h.hub.Serve(w, r, table, event)
}
