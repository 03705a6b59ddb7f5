// Package handler implements the JSON HTTP API of the pricing service.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront-pricing/internal/domain/auth"
	"github.com/xenking/storefront-pricing/internal/domain/order"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/product"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Pricer quotes carts and validates coupons.
type Pricer interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (*pricing.Result, error)
	ValidateCoupon(ctx context.Context, req pricing.QuoteRequest) (*pricing.CouponOutcome, error)
}

// OrderPlacer places orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
	// APIKeyPepper is the HMAC key API keys are hashed with.
	APIKeyPepper []byte
}

// Handler serves the HTTP API.
type Handler struct {
	products     product.Repository
	pricer       Pricer
	orders       OrderPlacer
	apikeys      auth.Repository
	validate     *validator.Validate
	imageBaseURL string
	pepper       []byte
}

// New constructs a Handler.
func New(
	cfg Config,
	products product.Repository,
	pricer Pricer,
	orders OrderPlacer,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		products:     products,
		pricer:       pricer,
		orders:       orders,
		apikeys:      apikeys,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL: cfg.ImageBaseURL,
		pepper:       cfg.APIKeyPepper,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/product", h.ListProducts)
	mux.HandleFunc("GET /api/product/{productId}", h.GetProduct)
	mux.Handle("POST /api/cart/price", h.requireKey(auth.ScopePricing, h.PriceCart))
	mux.Handle("POST /api/coupon/validate", h.requireKey(auth.ScopePricing, h.ValidateCoupon))
	mux.Handle("POST /api/order", h.requireKey(auth.ScopeOrders, h.PlaceOrder))
}
