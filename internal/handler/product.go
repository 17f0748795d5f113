package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, storeID string) {
	products, err := h.products.List(r.Context(), storeID)
	if err != nil {
		fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			h.encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, storeID string) {
	p, err := h.products.GetByID(r.Context(), storeID, r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, *p)
	})
}
