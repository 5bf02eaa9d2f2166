package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/tableside/internal/domain/menu"
)

func (h *Handler) writeMenuItems(w http.ResponseWriter, r *http.Request, items []menu.Item, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeList(items, encodeMenuItem))
}

func (h *Handler) writeMenuItem(w http.ResponseWriter, r *http.Request, code int, it *menu.Item, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, code, func(e *jx.Encoder) { encodeMenuItem(e, it) })
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.List(r.Context())
	h.writeMenuItems(w, r, items, err)
}

func (h *Handler) listAvailableMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.ListAvailable(r.Context())
	h.writeMenuItems(w, r, items, err)
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range menu.Categories {
			e.Str(string(c))
		}
		e.ArrEnd()
	})
}

func (h *Handler) listMenuByCategory(w http.ResponseWriter, r *http.Request) {
	c := menu.Category(r.PathValue("category"))
	if !c.Valid() {
		h.fail(w, r, badRequest("unknown category %q", c))
		return
	}
	items, err := h.Menu.ListByCategory(r.Context(), c)
	h.writeMenuItems(w, r, items, err)
}

func (h *Handler) searchMenu(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.fail(w, r, badRequest("name is required"))
		return
	}
	items, err := h.Menu.Search(r.Context(), name)
	h.writeMenuItems(w, r, items, err)
}

func (h *Handler) menuByPriceRange(w http.ResponseWriter, r *http.Request) {
	lo, err := queryDecimal(r, "min")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	hi, err := queryDecimal(r, "max")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if hi.LessThan(lo) {
		h.fail(w, r, badRequest("max must not be below min"))
		return
	}
	items, err := h.Menu.ListByPriceRange(r.Context(), lo, hi)
	h.writeMenuItems(w, r, items, err)
}

func (h *Handler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.Menu.GetByID(r.Context(), r.PathValue("id"))
	h.writeMenuItem(w, r, http.StatusOK, it, err)
}

// decodeMenuItem reads the editable fields of a menu item. Omitted
// "available" defaults to true.
func (h *Handler) decodeMenuItem(w http.ResponseWriter, r *http.Request) (menu.Item, error) {
	it := menu.Item{Available: true}
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			it.Name, err = decodeString(d)
		case "description":
			it.Description, err = decodeString(d)
		case "price":
			it.Price, err = decodeDecimal(d)
		case "category":
			var c string
			c, err = decodeString(d)
			it.Category = menu.Category(c)
		case "imageUrl":
			it.ImageURL, err = decodeString(d)
		case "available":
			it.Available, err = d.Bool()
		case "preparationMinutes":
			it.PrepMinutes, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeMenuItem(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.MenuSvc.Create(r.Context(), in)
	h.writeMenuItem(w, r, http.StatusCreated, it, err)
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeMenuItem(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.MenuSvc.Update(r.Context(), r.PathValue("id"), in)
	h.writeMenuItem(w, r, http.StatusOK, it, err)
}

func (h *Handler) toggleMenuItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.MenuSvc.ToggleAvailability(r.Context(), r.PathValue("id"))
	h.writeMenuItem(w, r, http.StatusOK, it, err)
}

func (h *Handler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := h.MenuSvc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
