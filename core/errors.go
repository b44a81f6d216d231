package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of these so
// the transport layer can map it to a status without string matching.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrRemoteFailure  = errors.New("remote failure")
	ErrDecodeFailure  = errors.New("decode failure")
	ErrStoreOperation = errors.New("store operation failed")
)

// Auth errors
var (
	ErrTokenExpired      = fmt.Errorf("%w: token has expired", ErrUnauthorized)
	ErrInvalidToken      = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrInvalidSignature  = fmt.Errorf("%w: invalid signature", ErrUnauthorized)
	ErrSignatureMismatch = fmt.Errorf("%w: signature does not match address", ErrUnauthorized)
	ErrUnknownIdentity   = fmt.Errorf("%w: wallet not registered", ErrNotFound)
	ErrInvalidAddress    = fmt.Errorf("%w: invalid ethereum address", ErrInvalidInput)
)

// Venue errors
var (
	ErrUnknownAsset         = fmt.Errorf("%w: asset symbol not registered", ErrInvalidInput)
	ErrInvalidMappedAddress = fmt.Errorf("%w: mapped asset address is invalid", ErrInvalidInput)
	ErrInvalidAmount        = fmt.Errorf("%w: amount must be a non-negative integer", ErrInvalidInput)

	// ErrTxRejected means the venue refused the transaction or it reverted.
	ErrTxRejected = fmt.Errorf("%w: transaction rejected", ErrRemoteFailure)
	// ErrTxTimeout means no receipt arrived in time. The transaction may still
	// confirm later and needs reconciliation before any retry.
	ErrTxTimeout = fmt.Errorf("%w: confirmation timed out", ErrRemoteFailure)

	ErrEventNotFound   = fmt.Errorf("%w: expected event not found", ErrDecodeFailure)
	ErrFieldNotNumeric = fmt.Errorf("%w: event field is not numeric", ErrDecodeFailure)
)
