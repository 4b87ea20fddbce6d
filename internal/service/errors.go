package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrItemNotInCart      = errors.New("item is not in the cart")
	ErrVideoQuantity      = errors.New("video items always have quantity 1")
	ErrInvalidItemType    = errors.New("item type must be video or shop")
	ErrNoOriginURL        = errors.New("origin URL is required for checkout")
	ErrMissingSessionID   = errors.New("callback URL carries no session_id")
	ErrDuplicateExchange  = errors.New("session id already exchanged")
	ErrOAuthExchange      = errors.New("oauth session exchange failed")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidOrderStatus = errors.New("unknown order status")
	ErrEmptyComment       = errors.New("comment cannot be empty")
)

// ValidationError lists required shipping fields that were left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("please fill in all required shipping fields: %s", strings.Join(e.Missing, ", "))
}
