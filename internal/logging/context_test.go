// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package logging

import (
	"context"
	"testing"
)

func TestGenerateCorrelationID(t *testing.T) {
	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()

	if len(id1) != 8 {
		t.Errorf("Expected 8-char correlation ID, got %d chars", len(id1))
	}
	if id1 == id2 {
		t.Error("Expected unique correlation IDs")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc12345")

	if got := CorrelationIDFromContext(ctx); got != "abc12345" {
		t.Errorf("CorrelationIDFromContext = %q, want %q", got, "abc12345")
	}
}

func TestCorrelationIDFromContext_Missing(t *testing.T) {
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty ID for bare context, got %q", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext = %q, want %q", got, "req-1")
	}
}

func TestLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	// A bare context should return the global logger, not panic.
	_ = LoggerFromContext(context.Background())
}

func TestLoggerFromContext_Stored(t *testing.T) {
	stored := Logger().With().Str("component", "test").Logger()
	ctx := ContextWithLogger(context.Background(), stored)

	got := LoggerFromContext(ctx)
	// zerolog loggers are not comparable; a smoke check that retrieval works.
	got.Debug().Msg("retrieved logger usable")
}
