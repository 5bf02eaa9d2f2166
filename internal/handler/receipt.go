package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/receipt"
)

// loadReceipt fetches the order and, when it still exists, its table.
func (h *Handler) loadReceipt(r *http.Request) (*order.Order, *table.Table, error) {
	o, err := h.Orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, nil, err
	}
	t, err := h.Tables.GetByID(r.Context(), o.TableID)
	if err != nil {
		if !errors.Is(err, table.ErrNotFound) {
			return nil, nil, err
		}
		t = nil
	}
	return o, t, nil
}

func (h *Handler) receiptText(w http.ResponseWriter, r *http.Request) {
	o, t, err := h.loadReceipt(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text := h.Receipts.Text(o, t)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orderNumber")
		e.Str(receipt.Number(o))
		e.FieldStart("receiptText")
		e.Str(text)
		e.ObjEnd()
	})
}

func (h *Handler) receiptHTML(w http.ResponseWriter, r *http.Request) {
	o, t, err := h.loadReceipt(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Receipts.HTML(&buf, o, t); err != nil {
		h.fail(w, r, errors.Wrap(err, "render html receipt"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// receiptDownload sends the text receipt as a gzip attachment.
func (h *Handler) receiptDownload(w http.ResponseWriter, r *http.Request) {
	o, t, err := h.loadReceipt(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Receipts.WriteGzip(&buf, o, t); err != nil {
		h.fail(w, r, errors.Wrap(err, "compress receipt"))
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename(o, "txt.gz")+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
