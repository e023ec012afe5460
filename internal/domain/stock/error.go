package stock

import "errors"

// Error classes. Store errors wrap exactly one of these.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("could not find result, please check the inputs")
	ErrIntegrity      = errors.New("integrity error")
	ErrTransientStore = errors.New("transient store error")
	ErrUnknownStore   = errors.New("unknown store error")
)

var (
	// Validation details
	ErrInvalidSymbol    = errors.New("invalid stock symbol")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrInvalidPrice     = errors.New("invalid price: must not be negative")
	ErrInvalidVolume    = errors.New("invalid volume: must not be negative")
	ErrInvalidPage      = errors.New("invalid page: must be at least 1")
	ErrInvalidPageSize  = errors.New("invalid page size: must be at least 1")
	ErrInvalidBatchSize = errors.New("invalid batch size")
	ErrInvalidOrder     = errors.New("invalid order")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error came from malformed input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsIntegrityError checks if the error is a unique/constraint violation
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsTransientError checks if the caller may retry
func IsTransientError(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
