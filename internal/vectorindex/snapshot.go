// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package vectorindex

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// snapshotVersion is the current snapshot format version.
const snapshotVersion = 1

// snapshotEnvelope is the durable form of an index. The header fields are
// validated on load so a snapshot from a different backend, dimension or
// format version is rejected rather than silently misread.
type snapshotEnvelope struct {
	Version   int      `json:"version"`
	Backend   string   `json:"backend"`
	Dimension int      `json:"dimension"`
	Count     int      `json:"count"`
	Records   []Record `json:"records"`
}

// writeSnapshot serializes records with a tagged header.
func writeSnapshot(w io.Writer, backend string, dimension int, records []Record) error {
	env := snapshotEnvelope{
		Version:   snapshotVersion,
		Backend:   backend,
		Dimension: dimension,
		Count:     len(records),
		Records:   records,
	}
	if err := json.NewEncoder(w).Encode(&env); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// readSnapshot deserializes a snapshot, validating its header against the
// running configuration.
func readSnapshot(r io.Reader, backend string, dimension int) ([]Record, error) {
	var env snapshotEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d",
			ErrSnapshotMismatch, env.Version, snapshotVersion)
	}
	if env.Backend != backend {
		return nil, fmt.Errorf("%w: backend %q, want %q",
			ErrSnapshotMismatch, env.Backend, backend)
	}
	if env.Dimension != dimension {
		return nil, fmt.Errorf("%w: dimension %d, want %d",
			ErrSnapshotMismatch, env.Dimension, dimension)
	}
	if env.Count != len(env.Records) {
		return nil, fmt.Errorf("%w: header count %d, records %d",
			ErrSnapshotMismatch, env.Count, len(env.Records))
	}

	for i := range env.Records {
		if len(env.Records[i].Vector) != dimension {
			return nil, fmt.Errorf("record %q: %w", env.Records[i].ID, ErrDimensionMismatch)
		}
	}
	return env.Records, nil
}
