package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/server/middleware"
	redisstore "github.com/gosuda/shopdesk/internal/store/redis"
)

// Subscriber streams payloads published on a channel. *redis.PubSub satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// FeatureGate reports whether a tenant's plan includes a feature.
// *billing.Service satisfies this interface.
type FeatureGate interface {
	RequireFeature(ctx context.Context, tenantID uuid.UUID, feature string) error
}

// Counter counts messages written to clients. *metrics.Metrics satisfies this interface.
type Counter interface {
	RealtimeMessage(stream string)
}

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	pubsub  Subscriber
	plans   FeatureGate
	counter Counter
}

// NewHub creates a new WebSocket hub. plans and counter may be nil.
func NewHub(pubsub Subscriber, plans FeatureGate, counter Counter) *Hub {
	return &Hub{pubsub: pubsub, plans: plans, counter: counter}
}

// ServeChanges streams the tenant's entity change events.
// Subscribes to Redis channel "tenant:<tenantID>".
func (h *Hub) ServeChanges(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	h.stream(w, r, "changes", redisstore.TenantChannel(tenantID))
}

// ServeCouriers streams courier positions for live tracking.
// Subscribes to Redis channel "couriers:<tenantID>".
func (h *Hub) ServeCouriers(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	if h.plans != nil {
		if err := h.plans.RequireFeature(r.Context(), tenantID, domain.FeatureLiveTracking); err != nil {
			http.Error(w, "live tracking is not included in the current plan", http.StatusPaymentRequired)
			return
		}
	}
	h.stream(w, r, "couriers", redisstore.CourierChannel(tenantID))
}

func (h *Hub) stream(w http.ResponseWriter, r *http.Request, stream, channel string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
			if h.counter != nil {
				h.counter.RealtimeMessage(stream)
			}
		}
	}
}
