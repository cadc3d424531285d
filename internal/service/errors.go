package service

import (
	"github.com/pkg/errors"
)

// Error kinds surfaced to the transport layer. Services wrap these with
// context at the raise site; handlers match with errors.Is.
var (
	// ErrNotFound: the id does not resolve to a live row.
	ErrNotFound = errors.New("not found")
	// ErrOwnershipDenied: the row exists but belongs to another user.
	// The transport layer maps this to 404 so that probing ids does not
	// leak which ones exist.
	ErrOwnershipDenied = errors.New("ownership denied")
	// ErrConflict: duplicate unique key, or deleting an inventory
	// bucket that still has purchase or usage history behind it.
	ErrConflict = errors.New("conflict")
	// ErrValidation: missing or malformed required field.
	ErrValidation = errors.New("validation failed")
)
