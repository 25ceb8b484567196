// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// blobVersion is the current EncryptedBlob format version.
	blobVersion = 1

	// aesKeySize is the AES key size in bytes (256 bits).
	aesKeySize = 32

	// gcmNonceSize is the GCM nonce size in bytes.
	gcmNonceSize = 12

	// saltSize is the per-store key-derivation salt size in bytes.
	saltSize = 16

	// DefaultKDFIterations is the PBKDF2 iteration baseline.
	DefaultKDFIterations = 100_000
)

var (
	// ErrEmptySecret is returned when an empty master secret is provided.
	ErrEmptySecret = errors.New("master secret cannot be empty")

	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("key not found")

	// ErrAuthenticationFailed is returned when decryption integrity
	// verification fails: wrong key, or the stored blob was tampered with.
	// Corrupted plaintext is never passed through.
	ErrAuthenticationFailed = errors.New("authentication failed: wrong key or tampered data")

	// ErrBlobVersion is returned when a stored blob carries an unknown
	// format version.
	ErrBlobVersion = errors.New("unsupported encrypted blob version")
)

// EncryptedBlob is the at-rest form of a value. Every field participates
// in decryption; any mismatch surfaces as ErrAuthenticationFailed or
// ErrBlobVersion, never as silently corrupted plaintext.
type EncryptedBlob struct {
	// Version is the blob format version.
	Version int `json:"version"`

	// Salt is the key-derivation salt the blob was written under.
	Salt []byte `json:"salt"`

	// Nonce is the fresh random GCM nonce used for this value.
	Nonce []byte `json:"nonce"`

	// Ciphertext holds the sealed payload including the GCM tag.
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveKey derives a 256-bit AES key from a caller-supplied secret using
// PBKDF2-HMAC-SHA256. Same inputs always yield the same key. The derived
// key lives only in process memory; it is never written to storage.
func DeriveKey(secret, salt []byte, iterations int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return pbkdf2.Key(secret, salt, iterations, aesKeySize, sha256.New), nil
}

// cipherBox owns the derived key and AEAD for one store instance.
type cipherBox struct {
	aead cipher.AEAD
	salt []byte
}

// newCipherBox derives the store key and prepares AES-256-GCM.
// A nil salt generates a fresh random one (persisted inside each blob so
// the same secret re-derives the key on later opens).
func newCipherBox(secret []byte, salt []byte, iterations int) (*cipherBox, error) {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
	}

	key, err := DeriveKey(secret, salt, iterations)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &cipherBox{aead: aead, salt: salt}, nil
}

// seal encrypts plaintext into a serialized EncryptedBlob with a fresh
// random nonce.
func (c *cipherBox) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := EncryptedBlob{
		Version:    blobVersion,
		Salt:       c.salt,
		Nonce:      nonce,
		Ciphertext: c.aead.Seal(nil, nonce, plaintext, blobAAD(blobVersion, c.salt)),
	}

	data, err := json.Marshal(&blob)
	if err != nil {
		return nil, fmt.Errorf("marshal blob: %w", err)
	}
	return data, nil
}

// open decrypts a serialized EncryptedBlob, verifying the GCM tag.
func (c *cipherBox) open(data []byte) ([]byte, error) {
	var blob EncryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("%w: malformed blob", ErrAuthenticationFailed)
	}

	if blob.Version != blobVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBlobVersion, blob.Version)
	}
	if len(blob.Nonce) != gcmNonceSize {
		return nil, fmt.Errorf("%w: bad nonce length", ErrAuthenticationFailed)
	}

	// Version and salt are bound into the GCM tag as additional data, so
	// tampering with any blob field fails authentication.
	plaintext, err := c.aead.Open(nil, blob.Nonce, blob.Ciphertext, blobAAD(blob.Version, blob.Salt))
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// blobAAD builds the additional authenticated data binding the blob
// header fields to the ciphertext.
func blobAAD(version int, salt []byte) []byte {
	aad := make([]byte, 0, 1+len(salt))
	aad = append(aad, byte(version))
	return append(aad, salt...)
}
