// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
type Config struct {
	Index     IndexConfig     `koanf:"index"`
	Store     StoreConfig     `koanf:"store"`
	Memory    MemoryConfig    `koanf:"memory"`
	Recommend RecommendConfig `koanf:"recommend"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	// Backend selects the search algorithm: "flat" or "graph".
	Backend string `koanf:"backend"`

	// Dimension is the embedding dimension shared by catalog and index.
	Dimension int `koanf:"dimension"`

	// SnapshotPath is where index snapshots are written. Empty disables
	// snapshotting.
	SnapshotPath string `koanf:"snapshot_path"`

	// SnapshotInterval is how often the snapshot service runs.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// MaxNeighbors bounds per-node graph degree (graph backend only).
	MaxNeighbors int `koanf:"max_neighbors"`

	// EfConstruction is the build-time beam width (graph backend only).
	EfConstruction int `koanf:"ef_construction"`

	// EfSearch is the query-time beam width (graph backend only).
	EfSearch int `koanf:"ef_search"`
}

// StoreConfig configures the encrypted key-value store.
type StoreConfig struct {
	// Backend selects the persistence engine: "file" or "badger".
	Backend string `koanf:"backend"`

	// Path is the storage root directory.
	Path string `koanf:"path"`

	// KDFIterations is the PBKDF2 iteration count.
	KDFIterations int `koanf:"kdf_iterations"`

	// MasterSecret is the key-derivation secret. Prefer MasterSecretFile
	// so the secret never appears in the environment.
	MasterSecret string `koanf:"master_secret"`

	// MasterSecretFile is a path to a file holding the master secret.
	MasterSecretFile string `koanf:"master_secret_file"`
}

// MemoryConfig configures user memory retention and blending.
type MemoryConfig struct {
	// Alpha is the weight of the newest emotion vector in the
	// preference blend.
	Alpha float64 `koanf:"alpha"`

	// Window bounds conversation history entries per user.
	Window int `koanf:"window"`
}

// RecommendConfig configures query blending and reranking.
type RecommendConfig struct {
	// BlendWeight is the stored-preference share of the blended query.
	BlendWeight float64 `koanf:"blend_weight"`

	// Oversample multiplies k for the index search.
	Oversample int `koanf:"oversample"`

	// RecencyHalfLife discounts profile signals by profile age.
	RecencyHalfLife time.Duration `koanf:"recency_half_life"`

	// AffinityBoost scales the genre-affinity contribution.
	AffinityBoost float64 `koanf:"affinity_boost"`

	// TopGenres bounds profile genres in explanations.
	TopGenres int `koanf:"top_genres"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs is the allowed requests per RateLimitWindow per IP.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ResolveMasterSecret returns the key-derivation secret, preferring the
// file source over the inline value.
func (c *Config) ResolveMasterSecret() ([]byte, error) {
	if c.Store.MasterSecretFile != "" {
		raw, err := os.ReadFile(c.Store.MasterSecretFile)
		if err != nil {
			return nil, fmt.Errorf("read master secret file: %w", err)
		}
		secret := strings.TrimSpace(string(raw))
		if secret == "" {
			return nil, fmt.Errorf("master secret file %s is empty", c.Store.MasterSecretFile)
		}
		return []byte(secret), nil
	}
	if c.Store.MasterSecret != "" {
		return []byte(c.Store.MasterSecret), nil
	}
	return nil, fmt.Errorf("MASTER_SECRET or MASTER_SECRET_FILE is required")
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateIndex() error {
	switch c.Index.Backend {
	case "flat", "graph":
	default:
		return fmt.Errorf("INDEX_BACKEND must be \"flat\" or \"graph\", got %q", c.Index.Backend)
	}
	if c.Index.Dimension < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Index.Dimension)
	}
	if c.Index.SnapshotInterval < 0 {
		return fmt.Errorf("INDEX_SNAPSHOT_INTERVAL must not be negative")
	}
	if c.Index.Backend == "graph" {
		if c.Index.MaxNeighbors < 0 || c.Index.EfConstruction < 0 || c.Index.EfSearch < 0 {
			return fmt.Errorf("graph backend parameters must not be negative")
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "file", "badger":
	default:
		return fmt.Errorf("STORE_BACKEND must be \"file\" or \"badger\", got %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	if c.Store.KDFIterations < 1 {
		return fmt.Errorf("KDF_ITERATIONS must be positive, got %d", c.Store.KDFIterations)
	}
	return nil
}

func (c *Config) validateMemory() error {
	if c.Memory.Alpha < 0 || c.Memory.Alpha > 1 {
		return fmt.Errorf("MEMORY_ALPHA must be within [0,1], got %v", c.Memory.Alpha)
	}
	if c.Memory.Window < 1 {
		return fmt.Errorf("MEMORY_WINDOW must be positive, got %d", c.Memory.Window)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if c.Recommend.BlendWeight < 0 || c.Recommend.BlendWeight >= 1 {
		return fmt.Errorf("BLEND_WEIGHT must be within [0,1), got %v", c.Recommend.BlendWeight)
	}
	if c.Recommend.Oversample < 1 {
		return fmt.Errorf("OVERSAMPLE must be at least 1, got %d", c.Recommend.Oversample)
	}
	if c.Recommend.RecencyHalfLife <= 0 {
		return fmt.Errorf("RECENCY_HALF_LIFE must be positive")
	}
	if c.Recommend.AffinityBoost < 0 {
		return fmt.Errorf("AFFINITY_BOOST must not be negative, got %v", c.Recommend.AffinityBoost)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be within 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.Server.RateLimitReqs)
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"json\" or \"console\", got %q", c.Logging.Format)
	}
	return nil
}
