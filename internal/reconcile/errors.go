package reconcile

import "github.com/rotisserie/eris"

var (
	// ErrMissingFiscalCode means the document carries no usable fiscal code.
	ErrMissingFiscalCode = eris.New("reconcile: fiscal code is required")

	// ErrSameCustomer rejects a transfer or merge whose two sides are the
	// same customer.
	ErrSameCustomer = eris.New("reconcile: source and target are the same customer")

	// ErrInvalidDecision rejects an operator decision that does not match the
	// current records (unknown property, missing target address, ...).
	ErrInvalidDecision = eris.New("reconcile: invalid operator decision")
)

// ErrCrossTenant is returned when a loaded record belongs to another agency.
var ErrCrossTenant = eris.New("reconcile: record belongs to another agency")
