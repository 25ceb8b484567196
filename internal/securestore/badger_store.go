// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package securestore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key layout.
const (
	// blobKeyPrefix namespaces encrypted entries.
	blobKeyPrefix = "blob:"

	// metaSaltKey stores the store-level key-derivation salt.
	metaSaltKey = "meta:salt"
)

// BadgerStore persists encrypted blobs in an embedded BadgerDB.
// Badger transactions give single-key atomicity; blobs are sealed before
// they reach the database, so the value log never holds plaintext.
type BadgerStore struct {
	db  *badger.DB
	box *cipherBox
}

// NewBadgerStore wraps an open BadgerDB as an encrypted store.
// The caller owns the database lifecycle when sharing it; Close here
// closes the handed-in database.
func NewBadgerStore(db *badger.DB, opts Options) (*BadgerStore, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrEmptySecret
	}

	salt, err := loadOrCreateBadgerSalt(db)
	if err != nil {
		return nil, err
	}

	box, err := newCipherBox(opts.Secret, salt, opts.Iterations)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, box: box}, nil
}

// OpenBadgerStore opens a BadgerDB at dir and wraps it as an encrypted store.
func OpenBadgerStore(dir string, opts Options) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	store, err := NewBadgerStore(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Put encrypts and transactionally replaces the value for key.
func (s *BadgerStore) Put(ctx context.Context, key string, plaintext []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.box.seal(plaintext)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blobKeyPrefix+key), data)
	})
}

// Get decrypts and verifies the value for key.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get blob: %w", err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.box.open(data)
}

// Delete removes the entry for key. Idempotent.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(blobKeyPrefix + key))
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// loadOrCreateBadgerSalt reads the store salt, creating it on first open.
func loadOrCreateBadgerSalt(db *badger.DB) ([]byte, error) {
	var salt []byte
	err := db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaSaltKey))
		if err == nil {
			salt, err = item.ValueCopy(nil)
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get store salt: %w", err)
		}

		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("generate store salt: %w", err)
		}
		return txn.Set([]byte(metaSaltKey), salt)
	})
	if err != nil {
		return nil, err
	}
	return salt, nil
}
