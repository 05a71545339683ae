// Package storage defines the persistence contracts used by the gateway.
package storage

import "context"

// CredentialStore holds the persisted session token.
type CredentialStore interface {
	// Get returns the current token, or "" when none is stored.
	Get(ctx context.Context) (string, error)

	// Set replaces the stored token.
	Set(ctx context.Context, token string) error

	// Clear removes the token and any session data stored alongside it.
	Clear(ctx context.Context) error
}
