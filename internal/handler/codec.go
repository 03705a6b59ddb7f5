package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
	"github.com/xenking/storefront-pricing/internal/domain/pricing"
	"github.com/xenking/storefront-pricing/internal/domain/product"
)

// bodyError reports an unreadable or malformed request body.
type bodyError struct {
	err error
}

func (e *bodyError) Error() string { return "invalid request body: " + e.err.Error() }

func (e *bodyError) Unwrap() error { return e.err }

type itemReq struct {
	ProductID string `validate:"required,max=64"`
	VariantID string `validate:"omitempty,max=64"`
	Quantity  int
}

func (it *itemReq) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "variantId":
			it.VariantID, err = d.Str()
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// cartReq is the body of the price, validate and order endpoints.
type cartReq struct {
	UserID     string    `validate:"required,max=128"`
	Role       string    `validate:"required"`
	Items      []itemReq `validate:"dive"`
	CouponCode string    `validate:"omitempty,max=64"`
}

func (c *cartReq) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			c.UserID, err = d.Str()
		case "role":
			c.Role, err = d.Str()
		case "couponCode":
			c.CouponCode, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var it itemReq
				if err := it.Decode(d); err != nil {
					return err
				}
				c.Items = append(c.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (c *cartReq) items() []pricing.Item {
	out := make([]pricing.Item, len(c.Items))
	for i, it := range c.Items {
		out[i] = pricing.Item{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity}
	}
	return out
}

func (c *cartReq) quote() pricing.QuoteRequest {
	return pricing.QuoteRequest{
		UserID:     c.UserID,
		Role:       discount.Role(c.Role),
		Items:      c.items(),
		CouponCode: c.CouponCode,
	}
}

// decodeCart reads and validates a cart request body.
func (h *Handler) decodeCart(w http.ResponseWriter, r *http.Request) (*cartReq, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &bodyError{err: err}
	}
	var req cartReq
	if err := req.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, &bodyError{err: err}
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

func field(e *jx.Encoder, name string, fn func(e *jx.Encoder)) {
	e.FieldStart(name)
	fn(e)
}

func moneyField(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	money(e, v)
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	base := h.imageBaseURL
	e.ObjStart()
	strField(e, "id", p.ID)
	strField(e, "name", p.Name)
	moneyField(e, "price", p.Price)
	strField(e, "category", p.Category)
	if p.Brand != "" {
		strField(e, "brand", p.Brand)
	}
	field(e, "image", func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "thumbnail", base+p.Image.Thumbnail)
		strField(e, "mobile", base+p.Image.Mobile)
		strField(e, "tablet", base+p.Image.Tablet)
		strField(e, "desktop", base+p.Image.Desktop)
		e.ObjEnd()
	})
	if len(p.Variants) > 0 {
		field(e, "variants", func(e *jx.Encoder) {
			e.ArrStart()
			for _, v := range p.Variants {
				e.ObjStart()
				strField(e, "id", v.ID)
				strField(e, "sku", v.SKU)
				strField(e, "name", v.Name)
				moneyField(e, "price", p.UnitPrice(&v))
				e.ObjEnd()
			}
			e.ArrEnd()
		})
	}
	e.ObjEnd()
}

func (h *Handler) encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		h.encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeLine(e *jx.Encoder, l discount.PricedLine) {
	e.ObjStart()
	strField(e, "productId", l.Item.ProductID)
	if l.Item.VariantID != "" {
		strField(e, "variantId", l.Item.VariantID)
	}
	field(e, "quantity", func(e *jx.Encoder) { e.Int(l.Item.Quantity) })
	moneyField(e, "unitPrice", l.Item.UnitPrice)
	moneyField(e, "effectiveUnitPrice", l.EffectiveUnitPrice)
	moneyField(e, "lineTotal", l.LineTotal)
	moneyField(e, "discount", l.Discount)
	if l.RuleID != "" {
		strField(e, "ruleId", l.RuleID)
		field(e, "percentage", func(e *jx.Encoder) { e.Str(l.Percentage.String()) })
	}
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *discount.CouponResult) {
	e.ObjStart()
	strField(e, "code", c.Code)
	strField(e, "type", string(c.Type))
	moneyField(e, "amount", c.Amount)
	moneyField(e, "eligibleSubtotal", c.ScopedSubtotal)
	if c.Description != "" {
		strField(e, "description", c.Description)
	}
	e.ObjEnd()
}

// encodeQuote writes the breakdown of a priced cart.
func (h *Handler) encodeQuote(e *jx.Encoder, res *pricing.Result) {
	e.ObjStart()
	field(e, "lines", func(e *jx.Encoder) {
		e.ArrStart()
		for _, l := range res.Lines {
			encodeLine(e, l)
		}
		e.ArrEnd()
	})
	moneyField(e, "grossTotal", res.GrossTotal)
	moneyField(e, "ruleDiscount", res.RuleDiscount)
	moneyField(e, "subtotal", res.Subtotal)
	moneyField(e, "couponDiscount", res.CouponDiscount)
	moneyField(e, "total", res.GrandTotal)
	if res.Coupon != nil {
		field(e, "coupon", func(e *jx.Encoder) { encodeCoupon(e, res.Coupon) })
	}
	field(e, "products", func(e *jx.Encoder) { h.encodeProducts(e, res.Products) })
	strField(e, "pricedAt", res.PricedAt.UTC().Format(timeLayout))
	e.ObjEnd()
}

func (h *Handler) encodeOrder(e *jx.Encoder, res *order.PlaceOrderResult) {
	o := res.Order
	e.ObjStart()
	strField(e, "id", o.ID)
	field(e, "items", func(e *jx.Encoder) {
		e.ArrStart()
		for _, l := range o.Lines {
			e.ObjStart()
			strField(e, "productId", l.ProductID)
			if l.VariantID != "" {
				strField(e, "variantId", l.VariantID)
			}
			field(e, "quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			moneyField(e, "unitPrice", l.EffectivePrice)
			moneyField(e, "lineTotal", l.LineTotal)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
	moneyField(e, "grossTotal", o.GrossTotal)
	moneyField(e, "discounts", o.RuleDiscount.Add(o.CouponDiscount))
	moneyField(e, "total", o.Total)
	if o.CouponCode != "" {
		strField(e, "couponCode", o.CouponCode)
	}
	field(e, "products", func(e *jx.Encoder) { h.encodeProducts(e, res.Products) })
	strField(e, "createdAt", o.CreatedAt.UTC().Format(timeLayout))
	e.ObjEnd()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Bytes())))
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"code":..,"message":..,"reason":..}; reason is omitted
// when empty.
func writeError(w http.ResponseWriter, status int, message string, reason discount.Reason) {
	var e jx.Encoder
	e.ObjStart()
	field(&e, "code", func(e *jx.Encoder) { e.Int(status) })
	strField(&e, "message", message)
	if reason != "" {
		strField(&e, "reason", string(reason))
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}
