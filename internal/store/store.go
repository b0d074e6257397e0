package store

import (
	"context"
	"errors"
	"fmt"
)

// Collection keys. Each key names one whole-collection record in the
// underlying store; a read of a key that was never written yields the
// collection's default seed.
const (
	KeyOrders       = "orders"
	KeyParts        = "parts"
	KeyMovements    = "movements"
	KeyTransactions = "transactions"
	KeyClients      = "clients"
	KeyBoats        = "boats"
	KeyMarinas      = "marinas"
	KeyUsers        = "users"
	KeyCounters     = "counters"
)

var (
	// ErrSerialization indicates a collection could not be encoded or
	// decoded as JSON.
	ErrSerialization = errors.New("collection serialization failed")

	// ErrReadOnly indicates a write was attempted inside a View.
	ErrReadOnly = errors.New("store: write inside read-only transaction")
)

// Store provides named collections with snapshot reads and all-or-nothing
// grouped writes. There are no partial updates: callers read a whole
// collection, mutate a copy, and write the whole collection back inside
// an Update. Everything staged during an Update commits together, or not
// at all if the callback returns an error.
type Store interface {
	// View runs fn against a consistent read snapshot.
	View(ctx context.Context, fn func(tx *Tx) error) error

	// Update runs fn with write access. Writers are serialized; staged
	// collection writes are committed only if fn returns nil.
	Update(ctx context.Context, fn func(tx *Tx) error) error

	Close() error
}

// Tx is the handle passed to View/Update callbacks. Reads see the state
// as of transaction start plus any writes staged in this transaction.
type Tx struct {
	load     func(key string) ([]byte, bool, error)
	staged   map[string][]byte
	readOnly bool
}

func newTx(load func(key string) ([]byte, bool, error), readOnly bool) *Tx {
	return &Tx{
		load:     load,
		staged:   make(map[string][]byte),
		readOnly: readOnly,
	}
}

// Bytes returns the raw collection payload, or ok=false if the key has
// never been written in this transaction or before it.
func (tx *Tx) Bytes(key string) ([]byte, bool, error) {
	if data, ok := tx.staged[key]; ok {
		return data, true, nil
	}
	return tx.load(key)
}

// PutBytes stages a whole-collection replace for commit.
func (tx *Tx) PutBytes(key string, data []byte) error {
	if tx.readOnly {
		return fmt.Errorf("%w: key %s", ErrReadOnly, key)
	}
	tx.staged[key] = data
	return nil
}
