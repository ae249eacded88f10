package core

import "errors"

// One failure kind per subsystem. Concrete failures wrap these so
// callers can classify with errors.Is without string matching.
var (
	ErrConfiguration = errors.New("invalid configuration")
	ErrAuth          = errors.New("identity handshake failed")
	ErrSubscription  = errors.New("ledger subscription failed")
	ErrValidation    = errors.New("invalid mutation input")
	ErrWrite         = errors.New("ledger write failed")
)
