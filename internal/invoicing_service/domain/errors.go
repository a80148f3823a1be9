package domain

import "errors"

var (
	// ErrValidation means the invoice request was rejected before any
	// provider call was made.
	ErrValidation = errors.New("invoice request validation failed")

	// ErrAuth means provider credential or token acquisition failed. Not
	// retried beyond re-acquiring the token on the next call.
	ErrAuth = errors.New("provider authentication failed")

	// ErrProviderUnavailable covers network failures and 5xx responses.
	// Retried per the bounded policies of the call site, then surfaced.
	ErrProviderUnavailable = errors.New("invoicing provider unavailable")

	// ErrNotFound is transient inside the create/publish/link window
	// (the provider's write path is not immediately read-consistent) and
	// terminal afterwards.
	ErrNotFound = errors.New("invoice not found")

	// ErrIssuanceFailed is terminal; the caller shows a generic
	// user-facing failure message.
	ErrIssuanceFailed = errors.New("invoice issuance failed")
)
