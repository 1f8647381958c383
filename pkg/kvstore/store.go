// Package kvstore implements the embedded ordered byte-key store every
// raftkv node uses as its local state machine. Committed puts and deletes
// go through the apply worker; snapshot restore writes via ReplaceAll; reads
// may happen concurrently from the KV service.
package kvstore

import (
	"errors"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

var bucketData = []byte("data")

// Store is a BoltDB-backed ordered byte-key store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the store at <dataDir>/raftkv.db.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "raftkv.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketData)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create data bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key, or ErrNotFound if it is absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketData).Get(key)
		if v == nil {
			return ErrNotFound
		}
		// BoltDB values are only valid for the lifetime of the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put writes key to val, overwriting any existing value.
func (s *Store) Put(key, val []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketData).Put(key, val)
	})
}

// Delete removes key. Deleting an absent key is a noop, matching spec.md's
// idempotence requirement for Op{Delete}.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketData).Delete(key)
	})
}

// ForEach calls fn for every key/value pair, in key order. Both slices are
// copies safe to retain past the call. Used by the consensus FSM to build a
// snapshot.
func (s *Store) ForEach(fn func(key, val []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketData).ForEach(func(k, v []byte) error {
			return fn(append([]byte(nil), k...), append([]byte(nil), v...))
		})
	})
}

// ReplaceAll atomically discards all existing data and loads entries in its
// place. Used by the consensus FSM to restore from a snapshot.
func (s *Store) ReplaceAll(entries map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketData); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketData)
		if err != nil {
			return err
		}
		for k, v := range entries {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}
