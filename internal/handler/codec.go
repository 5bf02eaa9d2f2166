package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/receipt"
)

const timeLayout = time.RFC3339

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func encodeList[T any](items []T, encode func(e *jx.Encoder, v *T)) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			encode(e, &items[i])
		}
		e.ArrEnd()
	}
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.Format(timeLayout))
}

func encodeMenuItem(e *jx.Encoder, it *menu.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("description")
	e.Str(it.Description)
	e.FieldStart("price")
	encodeDecimal(e, it.Price)
	e.FieldStart("category")
	e.Str(string(it.Category))
	e.FieldStart("imageUrl")
	e.Str(it.ImageURL)
	e.FieldStart("available")
	e.Bool(it.Available)
	e.FieldStart("preparationMinutes")
	e.Int(it.PrepMinutes)
	e.FieldStart("createdAt")
	encodeTime(e, it.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, it.UpdatedAt)
	e.ObjEnd()
}

func encodeTable(e *jx.Encoder, t *table.Table) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	e.FieldStart("tableNumber")
	e.Str(t.Number)
	e.FieldStart("capacity")
	e.Int(t.Capacity)
	e.FieldStart("status")
	e.Str(string(t.Occupancy))
	e.FieldStart("qrCode")
	e.Str(t.QRCode)
	e.FieldStart("createdAt")
	encodeTime(e, t.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, t.UpdatedAt)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("tableId")
	e.Str(o.TableID)
	e.FieldStart("items")
	e.ArrStart()
	for i := range o.Items {
		encodeOrderItem(e, &o.Items[i])
	}
	e.ArrEnd()
	e.FieldStart("totalAmount")
	encodeDecimal(e, o.Total)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("statusLabel")
	e.Str(receipt.StatusLabel(o.Status))
	e.FieldStart("customerNotes")
	e.Str(o.CustomerNote)
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, o.UpdatedAt)
	e.FieldStart("completedAt")
	if o.CompletedAt != nil {
		encodeTime(e, *o.CompletedAt)
	} else {
		e.Null()
	}
	e.ObjEnd()
}

func encodeOrderItem(e *jx.Encoder, it *order.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("menuItemId")
	e.Str(it.MenuItemID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("unitPrice")
	encodeDecimal(e, it.UnitPrice)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("subtotal")
	encodeDecimal(e, it.LineTotal())
	e.FieldStart("specialInstructions")
	e.Str(it.Instructions)
	e.FieldStart("status")
	e.Str(string(it.Status))
	e.FieldStart("statusLabel")
	e.Str(receipt.ItemStatusLabel(it.Status))
	e.FieldStart("createdAt")
	encodeTime(e, it.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, it.UpdatedAt)
	e.ObjEnd()
}

func encodeStatusChange(e *jx.Encoder, c *order.StatusChange) {
	e.ObjStart()
	e.FieldStart("from")
	e.Str(string(c.From))
	e.FieldStart("to")
	e.Str(string(c.To))
	e.FieldStart("changedAt")
	encodeTime(e, c.ChangedAt)
	e.ObjEnd()
}

// decodeBody reads a JSON object from the request body and hands every
// field to fn.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("body exceeds %d bytes", tooLarge.Limit)
		}
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return badRequest("empty body")
	}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		if errors.Is(err, errBadRequest) {
			return err
		}
		return badRequest("invalid json: %s", err)
	}
	return nil
}

// decodeString reads a string, treating null as empty.
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeDecimal accepts a price as a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, badRequest("price must be a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, badRequest("invalid price %q", raw)
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, badRequest("%s must be an integer", name)
	}
	return v, true, nil
}

func queryDecimal(r *http.Request, name string) (decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.Decimal{}, badRequest("%s is required", name)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, badRequest("%s must be a decimal", name)
	}
	return v, nil
}
