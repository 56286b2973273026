// Package kvstore provides the key-value storage substrate for FraudWatch.
//
// Every persistent collection (accounts, the active session, the three
// analysis logs) is stored as one JSON document under a well-known key.
// Writers read the whole document, modify it, and write it back; the last
// writer wins. That mirrors the storage model this service inherited and
// the rest of the codebase is built to tolerate it, so implementations must
// not add per-key merge or compare-and-swap behavior.
package kvstore

import (
	"context"
	"errors"
)

// Errors
var (
	ErrKeyNotFound = errors.New("key not found")

	// ErrCorrupt marks a stored document that no longer decodes as the
	// collection's JSON shape. Readers degrade to an empty collection or
	// their previous snapshot rather than failing the process.
	ErrCorrupt = errors.New("stored document is corrupt")
)

// Well-known collection keys.
const (
	KeyUsers        = "users"
	KeyCurrentUser  = "currentUser"
	KeyTransactions = "transactions"
	KeySpamEmails   = "spamEmails"
	KeyInvoices     = "invoices"
)

// Store persists JSON documents by key.
type Store interface {
	// Get returns the raw JSON stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the document under key with value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the document under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}
