// Package idgen provides ID generation utilities for the application.
// It hides the underlying ID strategy behind small typed helpers.
package idgen

import (
	"github.com/rs/xid"
)

// NewID generates a new globally unique, sortable identifier.
// Returns a 20-character string using xid format.
// The generated ID is:
// - Globally unique
// - Sortable by creation time
// - URL-safe (base32 encoded)
// - 20 characters long
func NewID() string {
	return xid.New().String()
}

// NewDocumentID generates the handle of a rendered document.
// Document URLs are public, so the handle must stay unguessable enough
// for a short-lived browsing context; xid's random counter seed covers that.
func NewDocumentID() string {
	return NewID()
}

// NewRequestID generates a unique ID for request tracking.
func NewRequestID() string {
	return NewID()
}

// IsValid reports whether s parses as an ID produced by this package.
func IsValid(s string) bool {
	_, err := xid.FromString(s)
	return err == nil
}
