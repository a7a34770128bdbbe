package checkout

import "errors"

var (
	ErrInvalidTransmission = errors.New("invalid transmission type")
	ErrInvalidMethod       = errors.New("invalid payment method")

	ErrFirstStep       = errors.New("already at the first step")
	ErrLastStep        = errors.New("already at the last step")
	ErrPaymentRequired = errors.New("payment must succeed before review")
	ErrAlreadyPaid     = errors.New("session is already paid")
	ErrSessionClosed   = errors.New("checkout session is closed")
	ErrNotOnPayment    = errors.New("payment is only possible on the payment step")
	ErrNotReviewable   = errors.New("order can only be placed from a paid review step")

	ErrPaymentInProgress   = errors.New("payment is already processing")
	ErrAttemptFinished     = errors.New("payment attempt finished, select a payment method to retry")
	ErrMethodNotChargeable = errors.New("payment method cannot be charged online")
	ErrMissingMethodRef    = errors.New("payment method reference is required")

	ErrSessionNotFound = errors.New("checkout session not found")
)
