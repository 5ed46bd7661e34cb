// Package kvstore provides the durable string-keyed store that holds all
// ledger state. Values are stored as plain text (integer strings or JSON).
package kvstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("kvstore: key not found")

// ErrUnknownDriver is returned by Open for an unsupported backend name.
var ErrUnknownDriver = errors.New("kvstore: unknown driver")

// Store is a string-keyed store. Implementations must be safe for concurrent use,
// but offer no atomicity across keys.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	// Keys returns all stored keys in sorted order.
	Keys() ([]string, error)
	Close() error
}

// Supported driver names.
const (
	DriverMemory  = "memory"
	DriverLevelDB = "leveldb"
	DriverSQLite  = "sqlite"
)

// Open opens a store for the given driver. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverLevelDB:
		if path == "" {
			return nil, fmt.Errorf("leveldb store requires a path")
		}
		return OpenLevelDB(path)
	case DriverSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Dump reads every key into a map. Keys that disappear while dumping are skipped.
func Dump(s Store) (map[string]string, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := s.Get(k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
