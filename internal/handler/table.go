package handler

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/tableside/internal/domain/table"
)

func (h *Handler) writeTables(w http.ResponseWriter, r *http.Request, tables []table.Table, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeList(tables, encodeTable))
}

func (h *Handler) writeTable(w http.ResponseWriter, r *http.Request, code int, t *table.Table, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, code, func(e *jx.Encoder) { encodeTable(e, t) })
}

// listTables lists every table, or only those with ?status=.
func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		tables, err := h.Tables.List(r.Context())
		h.writeTables(w, r, tables, err)
		return
	}
	occ, err := table.ParseOccupancy(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tables, err := h.Tables.ListByOccupancy(r.Context(), occ)
	h.writeTables(w, r, tables, err)
}

// listAvailableTables lists AVAILABLE tables. With ?capacity=N only tables
// seating at least N guests are returned, smallest first.
func (h *Handler) listAvailableTables(w http.ResponseWriter, r *http.Request) {
	capacity, ok, err := queryInt(r, "capacity")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var tables []table.Table
	if ok {
		if capacity < 1 {
			h.fail(w, r, badRequest("capacity must be at least 1"))
			return
		}
		tables, err = h.Tables.FindAvailable(r.Context(), capacity)
	} else {
		tables, err = h.Tables.ListByOccupancy(r.Context(), table.Available)
	}
	h.writeTables(w, r, tables, err)
}

// lookupTable resolves a table by ?number= or by the scanned ?qr= payload.
func (h *Handler) lookupTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		t   *table.Table
		err error
	)
	switch {
	case q.Get("number") != "":
		t, err = h.Tables.GetByNumber(r.Context(), q.Get("number"))
	case q.Get("qr") != "":
		t, err = h.Tables.GetByQRCode(r.Context(), q.Get("qr"))
	default:
		err = badRequest("number or qr is required")
	}
	h.writeTable(w, r, http.StatusOK, t, err)
}

func (h *Handler) getTable(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tables.GetByID(r.Context(), r.PathValue("id"))
	h.writeTable(w, r, http.StatusOK, t, err)
}

func (h *Handler) tableQRCode(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tables.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("tableNumber")
		e.Str(t.Number)
		e.FieldStart("qrCode")
		e.Str(t.QRCode)
		e.ObjEnd()
	})
}

// tableQRImage renders the table's QR code as a PNG. The image is returned
// base64 encoded in a JSON body, or raw with ?format=png.
func (h *Handler) tableQRImage(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tables.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	img, err := t.QRCodePNG()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "png":
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(img)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
	case "", "base64":
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("tableNumber")
			e.Str(t.Number)
			e.FieldStart("qrCodeImage")
			e.Str(base64.StdEncoding.EncodeToString(img))
			e.ObjEnd()
		})
	default:
		h.fail(w, r, badRequest("unknown image format %q", format))
	}
}

type tableInput struct {
	number   string
	capacity int
	status   string
}

func (h *Handler) decodeTable(w http.ResponseWriter, r *http.Request) (tableInput, error) {
	var in tableInput
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "tableNumber":
			in.number, err = decodeString(d)
		case "capacity":
			in.capacity, err = d.Int()
		case "status":
			in.status, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeTable(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.TableSvc.Create(r.Context(), in.number, in.capacity)
	h.writeTable(w, r, http.StatusCreated, t, err)
}

// updateTable replaces number, capacity and status. An omitted status keeps
// the current occupancy.
func (h *Handler) updateTable(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeTable(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	occ := table.Occupancy(in.status)
	if in.status == "" {
		cur, err := h.Tables.GetByID(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		occ = cur.Occupancy
	}
	t, err := h.TableSvc.Update(r.Context(), id, in.number, in.capacity, occ)
	h.writeTable(w, r, http.StatusOK, t, err)
}

func (h *Handler) setTableStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, err = decodeString(d)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	occ, err := table.ParseOccupancy(status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.TableSvc.SetOccupancy(r.Context(), r.PathValue("id"), occ)
	h.writeTable(w, r, http.StatusOK, t, err)
}

func (h *Handler) deleteTable(w http.ResponseWriter, r *http.Request) {
	if err := h.TableSvc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
