package checkout

import (
	"errors"
	"fmt"
)

// ValidationError is a precondition that failed before anything was submitted.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

var (
	ErrEmptyCart   = &ValidationError{Code: "empty_cart", Message: "Cart is empty"}
	ErrNoRecipient = &ValidationError{Code: "no_recipient", Message: "Please select a customer or choose Internal Sales"}

	// ErrCheckoutInProgress is returned while another checkout is being submitted.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// CheckoutError is a sale the backend did not accept. The cart is left as it was.
type CheckoutError struct {
	RequestID string
	Err       error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("%s (request %s): %v", MsgSaleFailed, e.RequestID, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
