// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package securestore provides encrypted, tamper-detecting key-value
// persistence for arbitrary byte payloads.
//
// Values are sealed with AES-256-GCM under a key derived from a
// caller-supplied master secret via PBKDF2-HMAC-SHA256 (100,000 iteration
// baseline). Key material only ever exists in process memory; the
// key-derivation salt is the only crypto parameter persisted, inside each
// blob and in the store root. No entry is ever written in plaintext.
//
// Two implementations back the same Store interface: a file-per-key store
// with atomic write-new-then-rename replacement, and an embedded
// BadgerDB store with single-key transactional writes. UserMemory and
// everything above it depend only on the interface.
package securestore

import "context"

// Store is the encrypted key-value contract.
// Writes are atomic at single-key granularity: a concurrent reader never
// observes a half-written blob.
type Store interface {
	// Put encrypts plaintext with a fresh random nonce and durably
	// replaces any previous value for key.
	Put(ctx context.Context, key string, plaintext []byte) error

	// Get decrypts and verifies the value for key. Returns ErrNotFound
	// for missing keys and ErrAuthenticationFailed when verification
	// fails; unverified plaintext is never returned.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the entry. Idempotent on missing keys.
	Delete(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// Options configures a store instance.
type Options struct {
	// Secret is the master secret used for key derivation.
	// Supplied by external configuration, never generated here.
	Secret []byte

	// Iterations is the PBKDF2 iteration count.
	// Defaults to DefaultKDFIterations when zero.
	Iterations int
}
