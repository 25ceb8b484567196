// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package securestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// saltFileName holds the store-level key-derivation salt.
	// The salt is public material; only the secret is sensitive.
	saltFileName = "store.salt"

	// blobExtension marks encrypted entries on disk.
	blobExtension = ".blob"
)

// FileStore persists one encrypted blob per key under a storage root.
// Replacement is write-new-then-rename so a reader never observes a
// partially written value. Side effects are confined to the root.
type FileStore struct {
	root string
	box  *cipherBox
}

// NewFileStore opens (or initializes) an encrypted store rooted at dir.
// A salt created on first open is reused on later opens so the same
// secret derives the same key.
func NewFileStore(dir string, opts Options) (*FileStore, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, err
	}

	box, err := newCipherBox(opts.Secret, salt, opts.Iterations)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: dir, box: box}, nil
}

// Put encrypts and atomically replaces the value for key.
func (s *FileStore) Put(ctx context.Context, key string, plaintext []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.box.seal(plaintext)
	if err != nil {
		return err
	}

	path := s.keyPath(key)

	// Write to a sibling temp file, then rename over the target: rename
	// within one directory is atomic on POSIX filesystems.
	tmp, err := os.CreateTemp(s.root, "put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace blob: %w", err)
	}
	return nil
}

// Get decrypts and verifies the value for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return s.box.open(data)
}

// Delete removes the entry for key. Idempotent.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.keyPath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

// keyPath maps a logical key to a file path. Keys are hex-encoded so
// arbitrary key strings cannot escape the storage root.
func (s *FileStore) keyPath(key string) string {
	encoded := hex.EncodeToString([]byte(key))
	return filepath.Join(s.root, encoded+blobExtension)
}

// loadOrCreateSalt reads the store salt, creating it on first open.
func loadOrCreateSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		salt := make([]byte, hex.DecodedLen(len(strings.TrimSpace(string(data)))))
		if _, err := hex.Decode(salt, []byte(strings.TrimSpace(string(data)))); err != nil {
			return nil, fmt.Errorf("decode store salt: %w", err)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read store salt: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate store salt: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(salt)), 0o600); err != nil {
		return nil, fmt.Errorf("write store salt: %w", err)
	}
	return salt, nil
}
