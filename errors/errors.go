// Package errors provides error handling for replica.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrDecrypt) {
//	    // skip this blob
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions and panics
var (
	AssertionFailedf                 = crdb.AssertionFailedf
	NewAssertionErrorWithWrappedErrf = crdb.NewAssertionErrorWithWrappedErrf
)

// Common sentinel errors for use across replica.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrDecode indicates wire or dump bytes that do not parse as a
	// canonical config tree: truncated input, trailing bytes, out-of-order
	// or duplicate dict keys, or a malformed token
	ErrDecode = New("malformed encoding")

	// ErrDecrypt indicates a blob that failed AEAD authentication or is
	// too short to carry a nonce; the blob must be discarded untrusted
	ErrDecrypt = New("decryption failed")

	// ErrInvalidDump indicates a local snapshot that cannot be restored
	// against the derived key; fatal to store construction
	ErrInvalidDump = New("invalid dump")

	// ErrInvalidSecret indicates a long-term secret of the wrong length
	ErrInvalidSecret = New("invalid secret key")

	// ErrInvalidID indicates a malformed conversation identifier
	ErrInvalidID = New("invalid id")

	// ErrInvalidPubkey indicates a server pubkey that is not 32 bytes or
	// is not valid hex, base32z, or base64
	ErrInvalidPubkey = New("invalid pubkey")
)

// IsDecodeError checks if an error is or wraps ErrDecode.
func IsDecodeError(err error) bool {
	return err != nil && Is(err, ErrDecode)
}

// IsDecryptError checks if an error is or wraps ErrDecrypt.
func IsDecryptError(err error) bool {
	return err != nil && Is(err, ErrDecrypt)
}

// IsRecoverable reports whether an error from a pull is scoped to one
// remote blob (skip it, keep going) rather than to local state.
func IsRecoverable(err error) bool {
	return err != nil && IsAny(err, ErrDecode, ErrDecrypt)
}
