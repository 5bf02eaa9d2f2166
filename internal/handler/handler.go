// Package handler exposes the catalog, table registry, ticket engine and
// receipt formatter over HTTP with JSON bodies.
package handler

import (
	"net/http"
	"time"

	"github.com/xenking/tableside/internal/domain/auth"
	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/receipt"
)

// HeaderAPIKey carries the staff API key.
const HeaderAPIKey = "X-API-Key"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Location is the default zone of GET /api/orders/today. Nil means
	// time.Local.
	Location *time.Location
	// MaxBodyBytes bounds request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Deps are the domain services the Handler delegates to.
type Deps struct {
	Menu     menu.Repository
	MenuSvc  *menu.Service
	Tables   table.Repository
	TableSvc *table.Service
	Orders   *order.Service
	Receipts *receipt.Formatter

	// Staff guards kitchen and admin routes. Nil leaves them open.
	Staff *auth.Authenticator
}

// Handler serves the JSON API.
type Handler struct {
	Deps
	loc     *time.Location
	maxBody int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config, deps Deps) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{Deps: deps, loc: loc, maxBody: maxBody}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	kitchen := h.staff(auth.ScopeKitchen)
	admin := h.staff(auth.ScopeAdmin)

	mux.HandleFunc("GET /api/menu", h.listMenu)
	mux.HandleFunc("GET /api/menu/available", h.listAvailableMenu)
	mux.HandleFunc("GET /api/menu/categories", h.listCategories)
	mux.HandleFunc("GET /api/menu/category/{category}", h.listMenuByCategory)
	mux.HandleFunc("GET /api/menu/search", h.searchMenu)
	mux.HandleFunc("GET /api/menu/price-range", h.menuByPriceRange)
	mux.HandleFunc("GET /api/menu/{id}", h.getMenuItem)
	mux.Handle("POST /api/menu", admin(h.createMenuItem))
	mux.Handle("PUT /api/menu/{id}", admin(h.updateMenuItem))
	mux.Handle("PATCH /api/menu/{id}/toggle-availability", admin(h.toggleMenuItem))
	mux.Handle("DELETE /api/menu/{id}", admin(h.deleteMenuItem))

	mux.HandleFunc("GET /api/tables", h.listTables)
	mux.HandleFunc("GET /api/tables/available", h.listAvailableTables)
	mux.HandleFunc("GET /api/tables/lookup", h.lookupTable)
	mux.HandleFunc("GET /api/tables/{id}", h.getTable)
	mux.HandleFunc("GET /api/tables/{id}/qr", h.tableQRCode)
	mux.HandleFunc("GET /api/tables/{id}/qr-image", h.tableQRImage)
	mux.HandleFunc("GET /api/tables/{id}/orders", h.listTableOrders)
	mux.Handle("POST /api/tables", admin(h.createTable))
	mux.Handle("PUT /api/tables/{id}", admin(h.updateTable))
	mux.Handle("PATCH /api/tables/{id}/status", admin(h.setTableStatus))
	mux.Handle("DELETE /api/tables/{id}", admin(h.deleteTable))

	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/active", h.listActiveOrders)
	mux.Handle("GET /api/orders/kitchen", kitchen(h.listKitchenOrders))
	mux.HandleFunc("GET /api/orders/today", h.listTodayOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /api/orders/{id}/history", h.orderHistory)
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("POST /api/orders/{id}/items", h.addOrderItem)
	mux.HandleFunc("PATCH /api/orders/{id}/items/{itemId}", h.setOrderItemQuantity)
	mux.HandleFunc("DELETE /api/orders/{id}/items/{itemId}", h.removeOrderItem)
	mux.Handle("PATCH /api/orders/{id}/items/{itemId}/status", kitchen(h.setOrderItemStatus))
	mux.Handle("PATCH /api/orders/{id}/status", kitchen(h.setOrderStatus))
	mux.Handle("PATCH /api/orders/{id}/confirm", kitchen(h.transition(h.Orders.Confirm)))
	mux.Handle("PATCH /api/orders/{id}/start-preparation", kitchen(h.transition(h.Orders.StartPreparation)))
	mux.Handle("PATCH /api/orders/{id}/ready", kitchen(h.transition(h.Orders.MarkReady)))
	mux.Handle("PATCH /api/orders/{id}/served", kitchen(h.transition(h.Orders.MarkServed)))
	mux.Handle("PATCH /api/orders/{id}/complete", kitchen(h.transition(h.Orders.Complete)))
	mux.Handle("PATCH /api/orders/{id}/cancel", kitchen(h.transition(h.Orders.Cancel)))

	mux.HandleFunc("GET /api/receipts/{id}/text", h.receiptText)
	mux.HandleFunc("GET /api/receipts/{id}/html", h.receiptHTML)
	mux.HandleFunc("GET /api/receipts/{id}/download", h.receiptDownload)
}

// staff returns a wrapper that requires a key carrying scope.
func (h *Handler) staff(scope string) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		if h.Staff == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := h.Staff.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey), scope); err != nil {
				h.fail(w, r, err)
				return
			}
			next(w, r)
		})
	}
}
