package marketplace

import (
	"errors"
	"fmt"

	"engagement-controlplane/pkg/errutil"
	"engagement-controlplane/services/catalog"
	"engagement-controlplane/services/ratelimit"
)

var (
	ErrRateLimited          = ratelimit.ErrRateLimited
	ErrInvalidCatalogEntry  = catalog.ErrInvalidCatalogEntry
	ErrValidation           = errors.New("marketplace: validation failed")
	ErrOrderNotFound        = errors.New("marketplace: order not found")
	ErrNoActiveClaim        = errors.New("marketplace: no active claim")
	ErrUnauthorized         = errors.New("marketplace: unauthorized")
	ErrPersistence          = errors.New("marketplace: persistence failure")
	ErrNotJoined            = errors.New("marketplace: engager has not joined")
	ErrInvalidState         = errors.New("marketplace: operation not allowed in current step")
	ErrPaymentPending       = errors.New("marketplace: payment already under review")
	ErrPayoutPending        = errors.New("marketplace: payout already pending")
	ErrInsufficientEarnings = errors.New("marketplace: earnings below withdrawal minimum")
	ErrAlreadyResolved      = errors.New("marketplace: request already resolved")
)

func validationError(msg string) error {
	return errutil.ValidationFailed(msg, ErrValidation)
}

func catalogError(msg string, err error) error {
	return errutil.ValidationFailed(msg, err)
}

func invalidState(msg string) error {
	return errutil.Conflict(msg, ErrInvalidState)
}

func notJoined() error {
	return errutil.Forbidden("join the marketplace first", ErrNotJoined)
}

func orderNotFound() error {
	return errutil.NotFound("this task is no longer available", ErrOrderNotFound)
}

func unauthorized() error {
	return errutil.Forbidden("not allowed", ErrUnauthorized)
}

func alreadyResolved() error {
	return errutil.Conflict("request already resolved", ErrAlreadyResolved)
}

func persistenceFailure(err error) error {
	return errutil.Internal("failed to save state", errors.Join(ErrPersistence, err))
}

func paymentPending() error {
	return errutil.Conflict("your payment is already being reviewed", ErrPaymentPending)
}

func payoutPending() error {
	return errutil.Conflict("you already have a withdrawal awaiting approval", ErrPayoutPending)
}

func errNoActiveClaim() error {
	return errutil.NotFound("you have no task in progress", ErrNoActiveClaim)
}

func insufficientEarnings(min int64) error {
	return errutil.ValidationFailed(fmt.Sprintf("you need at least %d to withdraw", min), ErrInsufficientEarnings)
}
