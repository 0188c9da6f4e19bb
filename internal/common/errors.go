// Package common defines shared constants and sentinel errors used across
// the sharing core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Key material errors.
	ErrInvalidKey   = errors.New("invalid key")
	ErrKeyAssertion = errors.New("key assertion failed")
	ErrBadSignature = errors.New("bad signature")

	// Passphrase acquisition errors.
	ErrPassphraseExhausted = errors.New("passphrase attempts exhausted")
	ErrPassphraseCancelled = errors.New("passphrase entry cancelled")

	// Validation errors.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidArgument   = errors.New("invalid argument")

	// Server and transport errors.
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
)
