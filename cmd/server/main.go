// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package main is the entry point for the Euphonia server.
//
// Euphonia is an emotion-aware music recommendation core: it blends the
// emotional embedding of the current utterance with an encrypted,
// per-user preference profile, searches a vector index of pre-vectorized
// songs, and reranks candidates by similarity, profile recency and
// genre affinity.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered sources via Koanf v2 (defaults, YAML, env)
//  2. Secure store: AES-256-GCM over file or BadgerDB backing
//  3. Catalog and vector index (flat or proximity graph), with optional
//     snapshot restore
//  4. Memory manager and recommendation engine
//  5. Supervisor tree: periodic index snapshots and the HTTP server
//
// # Configuration
//
// Highest priority wins:
//   - Environment variables (MASTER_SECRET, EMBEDDING_DIMENSION, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// The master secret is always supplied externally, via MASTER_SECRET or
// MASTER_SECRET_FILE. It is never written to disk; only the random KDF
// salt is persisted alongside the encrypted blobs.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: new
// connections stop, in-flight requests drain (10s timeout), a final
// index snapshot is written, and the store is closed.
//
// # Example Usage
//
//	export MASTER_SECRET=$(openssl rand -base64 32)
//	export STORE_PATH=/data/store
//	export INDEX_BACKEND=graph
//	export EMBEDDING_DIMENSION=384
//	./euphonia
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/euphonia/internal/api"
	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/config"
	"github.com/tomtom215/euphonia/internal/logging"
	"github.com/tomtom215/euphonia/internal/memory"
	"github.com/tomtom215/euphonia/internal/metrics"
	"github.com/tomtom215/euphonia/internal/recommend"
	"github.com/tomtom215/euphonia/internal/securestore"
	"github.com/tomtom215/euphonia/internal/supervisor"
	"github.com/tomtom215/euphonia/internal/supervisor/services"
	"github.com/tomtom215/euphonia/internal/vectorindex"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not yet available; the default logger applies.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("index_backend", cfg.Index.Backend).
		Int("dimension", cfg.Index.Dimension).
		Str("store_backend", cfg.Store.Backend).
		Msg("Starting Euphonia")

	secret, err := cfg.ResolveMasterSecret()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to resolve master secret")
	}

	store, err := openStore(cfg, secret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open secure store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing secure store")
		}
	}()
	logging.Info().Str("path", cfg.Store.Path).Msg("Secure store opened")

	cat, err := catalog.New(cfg.Index.Dimension)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create catalog")
	}

	idx, err := buildIndex(cfg.Index)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create vector index")
	}
	restoreSnapshot(idx, cfg.Index.SnapshotPath)
	metrics.IndexSize.WithLabelValues(idx.Backend()).Set(float64(idx.Len()))

	mem, err := memory.NewManager(store, memory.Config{
		Dimension: cfg.Index.Dimension,
		Alpha:     cfg.Memory.Alpha,
		Window:    cfg.Memory.Window,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create memory manager")
	}

	engine, err := recommend.NewEngine(cat, idx, mem, recommend.Config{
		BlendWeight:     cfg.Recommend.BlendWeight,
		Oversample:      cfg.Recommend.Oversample,
		RecencyHalfLife: cfg.Recommend.RecencyHalfLife,
		AffinityBoost:   cfg.Recommend.AffinityBoost,
		TopGenres:       cfg.Recommend.TopGenres,
		Breaker:         recommend.DefaultConfig().Breaker,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	handler := api.NewHandler(engine, cat, idx, mem, version)
	router := api.NewRouter(handler, cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// The slog adapter bridges zerolog to sutureslog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Index.SnapshotPath != "" {
		snapSvc, err := services.NewSnapshotService(idx, services.SnapshotServiceConfig{
			Path:               cfg.Index.SnapshotPath,
			Interval:           cfg.Index.SnapshotInterval,
			SnapshotOnShutdown: true,
		}, logging.Logger())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create snapshot service")
		}
		tree.AddStorageService(snapSvc)
		logging.Info().
			Str("path", cfg.Index.SnapshotPath).
			Dur("interval", cfg.Index.SnapshotInterval).
			Msg("Index snapshot service added")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// openStore builds the configured secure store backend.
func openStore(cfg *config.Config, secret []byte) (securestore.Store, error) {
	opts := securestore.Options{
		Secret:     secret,
		Iterations: cfg.Store.KDFIterations,
	}

	switch cfg.Store.Backend {
	case "file":
		return securestore.NewFileStore(cfg.Store.Path, opts)
	case "badger":
		return securestore.OpenBadgerStore(cfg.Store.Path, opts)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildIndex constructs the configured vector index backend.
func buildIndex(cfg config.IndexConfig) (vectorindex.Index, error) {
	var opts []vectorindex.GraphOption
	if cfg.MaxNeighbors > 0 {
		opts = append(opts, vectorindex.WithMaxNeighbors(cfg.MaxNeighbors))
	}
	if cfg.EfConstruction > 0 {
		opts = append(opts, vectorindex.WithEfConstruction(cfg.EfConstruction))
	}
	if cfg.EfSearch > 0 {
		opts = append(opts, vectorindex.WithEfSearch(cfg.EfSearch))
	}
	return vectorindex.New(cfg.Backend, cfg.Dimension, opts...)
}

// restoreSnapshot loads a previous index snapshot if one exists. The
// catalog is not persisted; a restored index serves similarity search
// while metadata refills through ingestion.
func restoreSnapshot(idx vectorindex.Index, path string) {
	if path == "" {
		return
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Info().Str("path", path).Msg("No index snapshot to restore")
		return
	}
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Cannot open index snapshot")
		return
	}
	defer f.Close()

	if err := idx.Load(f); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Index snapshot rejected, starting empty")
		return
	}
	logging.Info().Int("vectors", idx.Len()).Str("path", path).Msg("Index snapshot restored")
}
