package model

import "errors"

// ErrorKind groups domain errors by how callers should react to them.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindInsufficientStock  ErrorKind = "insufficient_stock"
	KindDiscountInvalid    ErrorKind = "discount_invalid"
	KindInsufficientPoints ErrorKind = "insufficient_points"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindForbidden          ErrorKind = "forbidden"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeGuestEmailTaken    = "GUEST_EMAIL_REGISTERED"
	ErrCodeVariationRequired  = "VARIATION_REQUIRED"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeDiscountNotFound   = "DISCOUNT_NOT_FOUND"
	ErrCodeDiscountInactive   = "DISCOUNT_INACTIVE"
	ErrCodeDiscountNotStarted = "DISCOUNT_NOT_STARTED"
	ErrCodeDiscountExpired    = "DISCOUNT_EXPIRED"
	ErrCodeDiscountExhausted  = "DISCOUNT_EXHAUSTED"
	ErrCodeDiscountUsed       = "DISCOUNT_ALREADY_USED"
	ErrCodeInsufficientPoints = "INSUFFICIENT_POINTS"
	ErrCodeGuestRedemption    = "GUEST_REDEMPTION"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeReturnNotFound     = "RETURN_NOT_FOUND"
	ErrCodeGrantNotFound      = "GRANT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	ErrCodeNotReturnable      = "ORDER_NOT_RETURNABLE"
	ErrCodeReturnWindowClosed = "RETURN_WINDOW_CLOSED"
	ErrCodeNothingToReturn    = "NOTHING_TO_RETURN"
	ErrCodeOrderNumberTaken   = "ORDER_NUMBER_CONFLICT"
	ErrCodeGrantCredited      = "GRANT_ALREADY_CREDITED"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// DomainError is a business-rule failure that is returned to the caller
// instead of being treated as an infrastructure fault.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that wrapped copies with a more
// specific message still compare equal to the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error with a caller-facing message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, ErrCodeValidation, message)
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: message}
}

// KindOf returns the kind of the domain error wrapped in err, or "" when err
// is not a domain error.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Common domain errors
var (
	ErrValidation           = NewValidationError("Request validation failed")
	ErrGuestEmailRegistered = NewDomainError(KindValidation, ErrCodeGuestEmailTaken, "An account exists for this email, please log in")
	ErrVariationRequired    = NewDomainError(KindValidation, ErrCodeVariationRequired, "A selection is required for every product variation")
	ErrGuestRedemption      = NewDomainError(KindValidation, ErrCodeGuestRedemption, "Only registered customers can redeem bonus points")

	ErrInsufficientStock = NewDomainError(KindInsufficientStock, ErrCodeInsufficientStock, "Not enough stock for the requested quantity")

	ErrDiscountNotFound   = NewDomainError(KindDiscountInvalid, ErrCodeDiscountNotFound, "Discount code not found")
	ErrDiscountInactive   = NewDomainError(KindDiscountInvalid, ErrCodeDiscountInactive, "Discount code is not active")
	ErrDiscountNotStarted = NewDomainError(KindDiscountInvalid, ErrCodeDiscountNotStarted, "Discount code is not valid yet")
	ErrDiscountExpired    = NewDomainError(KindDiscountInvalid, ErrCodeDiscountExpired, "Discount code has expired")
	ErrDiscountExhausted  = NewDomainError(KindDiscountInvalid, ErrCodeDiscountExhausted, "Discount code has reached its usage limit")
	ErrDiscountUsed       = NewDomainError(KindDiscountInvalid, ErrCodeDiscountUsed, "Discount code has already been used")

	ErrInsufficientPoints = NewDomainError(KindInsufficientPoints, ErrCodeInsufficientPoints, "Not enough bonus points")

	ErrProductNotFound = NewDomainError(KindNotFound, ErrCodeProductNotFound, "One or more products not found")
	ErrOrderNotFound   = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrReturnNotFound  = NewDomainError(KindNotFound, ErrCodeReturnNotFound, "Return request not found")
	ErrGrantNotFound   = NewDomainError(KindNotFound, ErrCodeGrantNotFound, "Points grant not found")
	ErrUserNotFound    = NewDomainError(KindNotFound, ErrCodeUserNotFound, "User not found")

	ErrInvalidTransition  = NewDomainError(KindConflict, ErrCodeInvalidTransition, "Status transition is not allowed")
	ErrNotReturnable      = NewDomainError(KindConflict, ErrCodeNotReturnable, "Only shipped orders can be returned")
	ErrReturnWindowClosed = NewDomainError(KindConflict, ErrCodeReturnWindowClosed, "The 30 day return window has passed")
	ErrNothingToReturn    = NewDomainError(KindValidation, ErrCodeNothingToReturn, "None of the requested items can be returned")
	ErrOrderNumberTaken   = NewDomainError(KindConflict, ErrCodeOrderNumberTaken, "Could not allocate a unique order number")
	ErrGrantCredited      = NewDomainError(KindConflict, ErrCodeGrantCredited, "Points grant has already been credited")

	ErrForbidden = NewDomainError(KindForbidden, ErrCodeForbidden, "Not allowed to access this resource")
)
