// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

/*
Package config loads and validates application configuration.

Configuration comes from three layered sources, later layers overriding
earlier ones: built-in defaults, an optional YAML file, and environment
variables. A curated environment mapping keeps unrelated variables out
of the configuration.

The master secret for key derivation is always supplied externally,
through MASTER_SECRET or MASTER_SECRET_FILE, and never generated or
persisted by the application. ResolveMasterSecret prefers the file
source so the secret can stay out of process environments.

Example:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal().Err(err).Msg("failed to load config")
	}
	secret, err := cfg.ResolveMasterSecret()
*/
package config
