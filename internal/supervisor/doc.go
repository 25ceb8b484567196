// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package supervisor builds the suture/v4 supervision tree.
//
// Layout:
//
//	euphonia (root)
//	├── storage-layer
//	│   └── index-snapshot (periodic vector index persistence)
//	└── api-layer
//	    └── http-server
//
// Services are restarted with suture's failure accounting; a snapshot
// service crash never interrupts HTTP serving. Suture events are
// bridged to slog through sutureslog.
package supervisor
