package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/tableside/internal/domain/order"
)

func (h *Handler) writeOrders(w http.ResponseWriter, r *http.Request, orders []order.Order, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeList(orders, encodeOrder))
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, code int, o *order.Order, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, code, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// listOrders lists every order, or with ?from=&to= (RFC 3339) the orders
// created in [from, to).
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		orders, err := h.Orders.List(r.Context(), order.All())
		h.writeOrders(w, r, orders, err)
		return
	}
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		h.fail(w, r, badRequest("from must be an RFC 3339 timestamp"))
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		h.fail(w, r, badRequest("to must be an RFC 3339 timestamp"))
		return
	}
	if !from.Before(to) {
		h.fail(w, r, badRequest("from must be before to"))
		return
	}
	orders, err := h.Orders.List(r.Context(), order.Between(from, to))
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) listActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.List(r.Context(), order.Active())
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) listKitchenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.List(r.Context(), order.KitchenQueue())
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) listTableOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.List(r.Context(), order.ByTable(r.PathValue("id")))
	h.writeOrders(w, r, orders, err)
}

// listTodayOrders uses the ?tz= zone when given, else the configured one.
func (h *Handler) listTodayOrders(w http.ResponseWriter, r *http.Request) {
	loc := h.loc
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			h.fail(w, r, badRequest("unknown time zone %q", tz))
			return
		}
		loc = l
	}
	orders, err := h.Orders.Today(r.Context(), loc)
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), r.PathValue("id"))
	h.writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := h.Orders.History(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeList(changes, encodeStatusChange))
}

// createOrder opens an order for {"tableId"} or {"tableNumber"}.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var tableID, tableNumber, note string
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "tableId":
			tableID, err = decodeString(d)
		case "tableNumber":
			tableNumber, err = decodeString(d)
		case "customerNotes":
			note, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tableID == "" {
		if tableNumber == "" {
			h.fail(w, r, badRequest("tableId or tableNumber is required"))
			return
		}
		t, err := h.Tables.GetByNumber(r.Context(), tableNumber)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		tableID = t.ID
	}
	o, err := h.Orders.Create(r.Context(), tableID, note)
	h.writeOrder(w, r, http.StatusCreated, o, err)
}

// addOrderItem appends a line. An omitted quantity means one.
func (h *Handler) addOrderItem(w http.ResponseWriter, r *http.Request) {
	var (
		menuItemID   string
		instructions string
		quantity     = 1
	)
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "menuItemId":
			menuItemID, err = decodeString(d)
		case "quantity":
			quantity, err = d.Int()
		case "specialInstructions":
			instructions, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if menuItemID == "" {
		h.fail(w, r, badRequest("menuItemId is required"))
		return
	}
	o, err := h.Orders.AddItem(r.Context(), r.PathValue("id"), menuItemID, quantity, instructions)
	h.writeOrder(w, r, http.StatusCreated, o, err)
}

func (h *Handler) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemId"))
	h.writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) setOrderItemQuantity(w http.ResponseWriter, r *http.Request) {
	quantity, seen := 0, false
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		seen = true
		var err error
		quantity, err = d.Int()
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !seen {
		h.fail(w, r, badRequest("quantity is required"))
		return
	}
	o, err := h.Orders.SetItemQuantity(r.Context(), r.PathValue("id"), r.PathValue("itemId"), quantity)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// decodeStatus reads the {"status": "..."} body shared by the status routes.
func (h *Handler) decodeStatus(w http.ResponseWriter, r *http.Request) (string, error) {
	var status string
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, err = decodeString(d)
		return err
	})
	return status, err
}

func (h *Handler) setOrderItemStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := h.decodeStatus(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := order.ParseItemStatus(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Orders.SetItemStatus(r.Context(), r.PathValue("id"), r.PathValue("itemId"), st)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := h.decodeStatus(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := order.ParseStatus(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Orders.SetStatus(r.Context(), r.PathValue("id"), st)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// transition adapts a body-less status shortcut such as Confirm.
func (h *Handler) transition(fn func(ctx context.Context, id string) (*order.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := fn(r.Context(), r.PathValue("id"))
		h.writeOrder(w, r, http.StatusOK, o, err)
	}
}
