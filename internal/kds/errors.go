package kds

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBranch = errors.New("invalid branch id")
	ErrInvalidOrder  = errors.New("invalid order id")
	ErrStopped       = errors.New("kitchen display stopped")

	// Authorization lost: the terminal must go back to PIN entry.
	ErrAuthRequired = errors.New("kitchen pin required")
	ErrForbidden    = errors.New("kitchen access denied")

	ErrFetchFailed        = errors.New("fetch kitchen orders failed")
	ErrActionInProgress   = errors.New("another order action is in progress")
	ErrBackwardTransition = errors.New("order is already past this step")

	ErrInvalidPinFormat = errors.New("pin must be exactly 6 digits")
	ErrVerifyInProgress = errors.New("pin verification already in progress")
	ErrAlreadyVerified  = errors.New("pin already verified")
	ErrWrongPin         = errors.New("wrong kitchen pin")
	ErrPinRejected      = errors.New("pin format rejected by backend")
	ErrBranchNotFound   = errors.New("branch not found")
	ErrNetwork          = errors.New("network error")
	ErrVerifyFailed     = errors.New("pin verification failed")
)

// ActionError reports a kitchen action that did not commit. The order stays
// in its previous bucket.
type ActionError struct {
	Action  Action
	OrderID int64
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s order %d: %v", e.Action, e.OrderID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Message returns the text shown to kitchen staff for err. Raw backend
// errors never reach the screen.
func Message(err error) string {
	var ae *ActionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidBranch):
		return "Invalid branch ID"
	case errors.Is(err, ErrForbidden):
		return "Access denied. Try logging in again."
	case errors.Is(err, ErrAuthRequired):
		return "Please enter the kitchen PIN."
	case errors.Is(err, ErrActionInProgress):
		return "Please wait for the current order to finish processing."
	case errors.Is(err, ErrBackwardTransition):
		return "This order has already moved on."
	case errors.As(err, &ae):
		return ae.Action.failureMessage()
	case errors.Is(err, ErrFetchFailed):
		return "Failed to load orders. Please try again."
	case errors.Is(err, ErrInvalidPinFormat):
		return "PIN must be 6 digits."
	case errors.Is(err, ErrVerifyInProgress):
		return "Verifying PIN..."
	case errors.Is(err, ErrWrongPin):
		return "Invalid PIN. Please try again."
	case errors.Is(err, ErrPinRejected):
		return "Invalid PIN format. PIN must be 6 digits."
	case errors.Is(err, ErrBranchNotFound):
		return "Branch not found."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection and try again."
	case errors.Is(err, ErrVerifyFailed):
		return "Failed to verify PIN. Please try again."
	}
	return "Something went wrong. Please try again."
}
