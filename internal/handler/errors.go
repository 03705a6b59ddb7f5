package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/product"
)

// writeDomainError maps err to an API error response. Unexpected errors are
// logged and reported as 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		bodyErr    *bodyError
		invalid    validator.ValidationErrors
		rejected   *discount.ResolutionError
		qtyErr     *pricing.InvalidQuantityError
		roleErr    *pricing.InvalidRoleError
		productErr *pricing.ProductNotFoundError
		variantErr *pricing.VariantNotFoundError
	)
	switch {
	case errors.As(err, &bodyErr):
		writeError(w, http.StatusBadRequest, bodyErr.Error(), "")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, validationMessage(invalid), "")
	case errors.Is(err, pricing.ErrEmptyItems),
		errors.Is(err, pricing.ErrUserRequired),
		errors.Is(err, pricing.ErrCouponCodeRequired):
		writeError(w, http.StatusBadRequest, rootMessage(err), "")
	case errors.As(err, &rejected):
		writeError(w, http.StatusUnprocessableEntity, rejected.Message(), rejected.Reason)
	case errors.As(err, &qtyErr):
		writeError(w, http.StatusUnprocessableEntity, qtyErr.Error(), "")
	case errors.As(err, &roleErr):
		writeError(w, http.StatusUnprocessableEntity, roleErr.Error(), "")
	case errors.As(err, &productErr):
		writeError(w, http.StatusUnprocessableEntity, productErr.Error(), "")
	case errors.As(err, &variantErr):
		writeError(w, http.StatusUnprocessableEntity, variantErr.Error(), "")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found", "")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

// rootMessage returns the innermost error message, without the context
// added by wrapping.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, len(errs))
	for i, fe := range errs {
		msgs[i] = fe.Namespace() + ": failed " + fe.Tag()
		if fe.Param() != "" {
			msgs[i] += "=" + fe.Param()
		}
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}
