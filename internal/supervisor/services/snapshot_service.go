// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/euphonia/internal/metrics"
)

// Snapshotter is the part of the vector index the snapshot service
// needs. Satisfied by vectorindex.Index.
type Snapshotter interface {
	Snapshot(w io.Writer) error
}

// SnapshotServiceConfig holds configuration for the snapshot service.
type SnapshotServiceConfig struct {
	// Path is the snapshot file location. The parent directory must be
	// writable; snapshots are written to a temp file and renamed so a
	// crash mid-write never corrupts the previous snapshot.
	Path string

	// Interval is how often to persist the index.
	Interval time.Duration

	// SnapshotOnShutdown writes one final snapshot when the service is
	// stopped.
	SnapshotOnShutdown bool
}

// SnapshotService periodically persists the vector index so a restart
// can skip re-ingesting the catalog.
type SnapshotService struct {
	index  Snapshotter
	config SnapshotServiceConfig
	logger zerolog.Logger
	name   string
}

// NewSnapshotService creates a new index snapshot service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(index Snapshotter, cfg SnapshotServiceConfig, logger zerolog.Logger) (*SnapshotService, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &SnapshotService{
		index:  index,
		config: cfg,
		logger: logger.With().Str("service", "index-snapshot").Logger(),
		name:   "index-snapshot",
	}, nil
}

// Serve implements the suture.Service interface, running the periodic
// snapshot loop until the context is canceled.
func (s *SnapshotService) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("path", s.config.Path).
		Dur("interval", s.config.Interval).
		Msg("snapshot service starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.config.SnapshotOnShutdown {
				if err := s.snapshot(); err != nil {
					s.logger.Warn().Err(err).Msg("final snapshot failed")
				}
			}
			s.logger.Info().Msg("snapshot service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.snapshot(); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled snapshot failed")
			}
		}
	}
}

// snapshot writes the index atomically: temp file in the target
// directory, then rename.
func (s *SnapshotService) snapshot() (err error) {
	defer func() { metrics.RecordIndexSnapshot(err) }()

	start := time.Now()

	dir := filepath.Dir(s.config.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.config.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.index.Snapshot(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.config.Path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	s.logger.Debug().
		Dur("duration", time.Since(start)).
		Msg("index snapshot written")
	return nil
}

// String returns the service name for logging.
func (s *SnapshotService) String() string {
	return s.name
}
