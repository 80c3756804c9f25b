package httpx

import (
	"context"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/notify"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	"github.com/ariefcatur/takeaway-settlement/internal/realtime"
	"github.com/ariefcatur/takeaway-settlement/internal/redisx"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"time"
)

// StatusCache serves cached order statuses and is refilled on a miss.
type StatusCache interface {
	GetStatus(ctx context.Context, orderID int64) (redisx.CachedStatus, bool, error)
	SetStatus(ctx context.Context, o *orders.Order)
}

// API holds every service the HTTP surface needs.
type API struct {
	Orders      *orders.Service
	Storefronts orders.StorefrontStore
	Payments    *payment.Service
	Callbacks   *payment.Callbacks
	Ledger      *ledger.Ledger
	Stats       *stats.Aggregator
	Rates       *settlement.Resolver
	Inbox       *notify.Inbox
	StatusCache StatusCache      // optional
	Bridge      *realtime.Bridge // optional, /ws is not mounted without it
	Log         *zap.Logger
}

func (a *API) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(Identify)
		r.Use(middleware.Timeout(15 * time.Second))

		// vendor callbacks carry no identity headers
		r.Post("/payment/{gateway}/notify", a.paymentNotify)

		r.Group(func(r chi.Router) {
			r.Use(a.requireRole(orders.RoleCustomer))
			r.Post("/orders", a.placeOrder)
			r.Get("/orders", a.listMyOrders)
			r.Post("/orders/{id}/cancel", a.cancelOrder)
			r.Post("/orders/{id}/confirm-receipt", a.confirmReceipt)
			r.Post("/payment/{gateway}/create", a.createPayment)
			r.Get("/payment/{gateway}/query/{orderNo}", a.queryPayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireRole(orders.RoleCustomer, orders.RoleMerchant, orders.RoleAdmin))
			r.Get("/orders/{id}", a.getOrder)
			r.Get("/orders/{id}/status", a.getOrderStatus)

			r.Get("/notifications", a.listNotifications)
			r.Get("/notifications/unread-count", a.unreadCount)
			r.Put("/notifications/read-all", a.markAllRead)
			r.Put("/notifications/{id}/read", a.markRead)
			r.Delete("/notifications/{id}", a.deleteNotification)
			r.Delete("/notifications", a.deleteAllNotifications)
		})

		r.Route("/merchant", func(r chi.Router) {
			r.Use(a.requireRole(orders.RoleMerchant))
			r.Get("/orders", a.merchantOrders)
			r.Post("/orders/{id}/{action}", a.merchantAction)
			r.Get("/statistics", a.merchantStatistics)
			r.Get("/balance", a.merchantBalance)
			r.Post("/withdraw", a.merchantWithdraw)
			r.Get("/ledger", a.merchantLedger)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireRole(orders.RoleAdmin))
			r.Get("/statistics", a.platformStatistics)
			r.Put("/platform-rate", a.setPlatformRate)
			r.Patch("/storefronts/{id}", a.patchStorefront)
			r.Get("/storefronts/{id}/statistics", a.storefrontStatistics)
			r.Post("/orders/{id}/cancel", a.adminCancel)
		})
	})

	if a.Bridge != nil {
		r.With(Identify).Get("/ws", a.websocket)
	}
}
