package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
)

// PlaceOrder prices the cart and records the order together with its coupon
// redemption.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCart(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:     req.UserID,
		Role:       discount.Role(req.Role),
		Items:      req.items(),
		CouponCode: req.CouponCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var e jx.Encoder
	h.encodeOrder(&e, res)
	writeJSON(w, http.StatusOK, &e)
}
