package rentals

import "errors"

// Sentinel causes carried inside the pkg/errors values returned by this
// package; match them with errors.Is.
var (
	ErrInvalidPeriod      = errors.New("invalid rental period")
	ErrInvalidHolder      = errors.New("invalid rental holder")
	ErrCostumeNotFound    = errors.New("costume not found")
	ErrCostumeUnavailable = errors.New("costume is not available")
	ErrRentalNotFound     = errors.New("rental not found")
	ErrAlreadyReturned    = errors.New("rental already returned")
	ErrForbidden          = errors.New("rental belongs to another holder")
	ErrBusy               = errors.New("booking contention")
	ErrCanceled           = errors.New("booking abandoned by caller")
)
