package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// PriceCart quotes a cart with rule discounts and an optional coupon. A
// rejected coupon is a 422 carrying the rejection reason.
func (h *Handler) PriceCart(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCart(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := h.pricer.Quote(r.Context(), req.quote())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var e jx.Encoder
	h.encodeQuote(&e, res)
	writeJSON(w, http.StatusOK, &e)
}

// ValidateCoupon reports whether the coupon applies to the cart. A
// rejected coupon is a 200 with valid=false and the reason.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCart(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out, err := h.pricer.ValidateCoupon(r.Context(), req.quote())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	field(&e, "valid", func(e *jx.Encoder) { e.Bool(out.Valid) })
	if out.Valid {
		moneyField(&e, "discount", out.Discount.Amount)
		moneyField(&e, "subtotal", out.Quote.Subtotal)
		moneyField(&e, "total", out.Quote.GrandTotal)
		field(&e, "coupon", func(e *jx.Encoder) { encodeCoupon(e, out.Discount) })
	} else {
		strField(&e, "reason", string(out.Reason))
		strField(&e, "message", out.Message)
		moneyField(&e, "discount", decimal.Zero)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
