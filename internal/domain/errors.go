package domain

import "errors"

var (
	// ErrInsufficientHistory means there is not enough sales data to
	// decompose or forecast. Fatal for the request that needed it.
	ErrInsufficientHistory = errors.New("insufficient sales history")

	// ErrInvalidHorizon means the caller asked for a non-positive horizon.
	ErrInvalidHorizon = errors.New("forecast horizon must be a positive number of days")

	// ErrInvalidStock means the caller supplied a negative current stock.
	ErrInvalidStock = errors.New("current stock cannot be negative")

	// ErrUnknownSource means a source tag has no registered normalization
	// rule. Raised at startup when the enabled-source list is validated,
	// not per request.
	ErrUnknownSource = errors.New("unknown external signal source")

	// ErrUnknownProduct means the product id is not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")
)
