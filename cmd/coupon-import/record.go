package main

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

// couponRecord is one line of an import file.
type couponRecord struct {
	Code         string    `validate:"required,max=64,alphanum"`
	Description  string    `validate:"max=512"`
	Type         string    `validate:"required,oneof=fixed percentage"`
	TargetType   string    `validate:"required,oneof=cart product category brand variant"`
	TargetID     string    `validate:"required_unless=TargetType cart,excluded_if=TargetType cart"`
	TargetRole   string    `validate:"omitempty,oneof=customer retailer both"`
	UsageLimit   int       `validate:"gte=0"`
	UsagePerUser int       `validate:"gte=0"`
	ValidFrom    time.Time `validate:"required"`
	ValidTo      time.Time `validate:"required,gtfield=ValidFrom"`
	Active       bool
	NewUsersOnly bool

	Value        decimal.Decimal
	MinCartValue decimal.Decimal
	MaxDiscount  decimal.NullDecimal
}

// key is the case-insensitive identity of the coupon.
func (r *couponRecord) key() string {
	return strings.ToUpper(r.Code)
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

// Decode reads a record. Active defaults to true.
func (r *couponRecord) Decode(d *jx.Decoder) error {
	r.Active = true
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			r.Code, err = d.Str()
		case "description":
			r.Description, err = d.Str()
		case "type":
			r.Type, err = d.Str()
		case "value":
			r.Value, err = decodeDecimal(d)
		case "targetType":
			r.TargetType, err = d.Str()
		case "targetId":
			r.TargetID, err = d.Str()
		case "targetRole":
			r.TargetRole, err = d.Str()
		case "minCartValue":
			r.MinCartValue, err = decodeDecimal(d)
		case "maxDiscount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			r.MaxDiscount = decimal.NewNullDecimal(v)
		case "usageLimit":
			r.UsageLimit, err = d.Int()
		case "usagePerUser":
			r.UsagePerUser, err = d.Int()
		case "validFrom":
			r.ValidFrom, err = decodeTime(d)
		case "validTo":
			r.ValidTo, err = decodeTime(d)
		case "active":
			r.Active, err = d.Bool()
		case "newUsersOnly":
			r.NewUsersOnly, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// parseRecord decodes and validates one line into a coupon.
func parseRecord(v *validator.Validate, line []byte) (*couponRecord, *discount.Coupon, error) {
	var r couponRecord
	if err := r.Decode(jx.DecodeBytes(line)); err != nil {
		return nil, nil, errors.Wrap(err, "decode")
	}
	if err := v.Struct(&r); err != nil {
		return nil, nil, errors.Wrap(err, "validate")
	}
	c := r.coupon()
	if err := c.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "validate")
	}
	return &r, c, nil
}

func (r *couponRecord) coupon() *discount.Coupon {
	role := discount.TargetRole(r.TargetRole)
	if role == "" {
		role = discount.TargetBoth
	}
	return &discount.Coupon{
		Code:         r.Code,
		Description:  r.Description,
		Type:         discount.CouponType(r.Type),
		Value:        r.Value,
		Scope:        discount.Scope{Kind: discount.ScopeKind(r.TargetType), ID: r.TargetID},
		TargetRole:   role,
		MinCartValue: r.MinCartValue,
		MaxDiscount:  r.MaxDiscount,
		UsageLimit:   r.UsageLimit,
		UsagePerUser: r.UsagePerUser,
		ValidFrom:    r.ValidFrom,
		ValidTo:      r.ValidTo,
		Active:       r.Active,
		NewUsersOnly: r.NewUsersOnly,
	}
}
