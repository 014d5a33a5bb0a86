package repository

import "context"

// ICredentialStore persists single-value credentials per key (tokens, resolved
// account ids, pending OAuth nonces). Writes overwrite the previous value.
type ICredentialStore interface {
	// Get returns the stored value, or "" when the key has never been written.
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
