package discount

// Reason identifies why a coupon could not be applied.
type Reason string

const (
	ReasonNotFound             Reason = "not_found"
	ReasonInactive             Reason = "inactive"
	ReasonExpired              Reason = "expired"
	ReasonNotYetValid          Reason = "not_yet_valid"
	ReasonRoleNotEligible      Reason = "role_not_eligible"
	ReasonNotEligible          Reason = "not_eligible"
	ReasonUsageLimitExceeded   Reason = "usage_limit_exceeded"
	ReasonPerUserLimitExceeded Reason = "per_user_limit_exceeded"
	ReasonMinCartValueNotMet   Reason = "min_cart_value_not_met"
	ReasonScopeMismatch        Reason = "scope_mismatch"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:             "coupon not found",
	ReasonInactive:             "coupon is not active",
	ReasonExpired:              "coupon has expired",
	ReasonNotYetValid:          "coupon is not yet valid",
	ReasonRoleNotEligible:      "coupon is not available for this account type",
	ReasonNotEligible:          "coupon is only available on a first order",
	ReasonUsageLimitExceeded:   "coupon usage limit reached",
	ReasonPerUserLimitExceeded: "coupon already used the maximum number of times",
	ReasonMinCartValueNotMet:   "cart value is below the coupon minimum",
	ReasonScopeMismatch:        "no item in the cart qualifies for this coupon",
}

// ResolutionError reports a coupon that was rejected. Errors compare equal
// under errors.Is when their reasons match, so the exported sentinels can be
// used as targets.
type ResolutionError struct {
	Reason Reason
	Code   string
}

func (e *ResolutionError) Error() string {
	msg, ok := reasonMessages[e.Reason]
	if !ok {
		msg = string(e.Reason)
	}
	if e.Code == "" {
		return msg
	}
	return msg + ": " + e.Code
}

// Is matches any ResolutionError with the same reason.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Reason == e.Reason
}

// Message returns the user-facing description of the reason.
func (e *ResolutionError) Message() string {
	return reasonMessages[e.Reason]
}

func reject(reason Reason, code string) *ResolutionError {
	return &ResolutionError{Reason: reason, Code: code}
}

var (
	ErrNotFound             = &ResolutionError{Reason: ReasonNotFound}
	ErrInactive             = &ResolutionError{Reason: ReasonInactive}
	ErrExpired              = &ResolutionError{Reason: ReasonExpired}
	ErrNotYetValid          = &ResolutionError{Reason: ReasonNotYetValid}
	ErrRoleNotEligible      = &ResolutionError{Reason: ReasonRoleNotEligible}
	ErrNotEligible          = &ResolutionError{Reason: ReasonNotEligible}
	ErrUsageLimitExceeded   = &ResolutionError{Reason: ReasonUsageLimitExceeded}
	ErrPerUserLimitExceeded = &ResolutionError{Reason: ReasonPerUserLimitExceeded}
	ErrMinCartValueNotMet   = &ResolutionError{Reason: ReasonMinCartValueNotMet}
	ErrScopeMismatch        = &ResolutionError{Reason: ReasonScopeMismatch}
)
