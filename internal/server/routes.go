package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/shopdesk/internal/api/v1"
	"github.com/gosuda/shopdesk/internal/api/ws"
	"github.com/gosuda/shopdesk/internal/config"
)

func registerAuthRoutes(api huma.API, cfg *config.Config, d Deps) {
	v1.RegisterAuthRoutes(api, d.Store, d.Auth, d.Providers, cfg.Billing.DefaultPlan)
}

func registerAPIRoutes(api huma.API, cfg *config.Config, d Deps) {
	v1.RegisterTenantRoutes(api, d.Store, d.Plans, cfg.Billing.DefaultPlan)
	v1.RegisterUserRoutes(api, d.Store, d.Auth)
	v1.RegisterProductRoutes(api, d.Store, d.Plans, d.Files, d.Events)
	v1.RegisterCouponRoutes(api, d.Store, d.Events)
	v1.RegisterOrderRoutes(api, d.Store, d.Notifier, d.Events, d.Metrics)
	v1.RegisterCourierRoutes(api, d.Store, d.Plans, d.Positions, d.Events)
	v1.RegisterDeliveryRoutes(api, d.Store, d.Notifier, d.Events)
	v1.RegisterPurchaseOrderRoutes(api, d.Store, d.Files, d.Events)
	v1.RegisterNotificationRoutes(api, d.Store, d.Plans, d.Notifier, d.Secrets)
	v1.RegisterGiveawayRoutes(api, d.Store, d.Plans, d.Drawer, d.Events)
	v1.RegisterAnalyticsRoutes(api, d.Store)
	v1.RegisterAuditRoutes(api, d.Store)
	v1.RegisterBillingRoutes(api, d.Store, d.Plans)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/changes", hub.ServeChanges)
	r.Get("/couriers", hub.ServeCouriers)
}
