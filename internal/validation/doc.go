// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library in a thread-safe
// singleton with user-friendly error messages, integrated with the API's
// error format for consistent error responses.
//
// # Quick Start
//
//	type RecommendRequest struct {
//	    UserID string    `validate:"required"`
//	    Query  []float32 `validate:"required,min=1"`
//	    K      int       `validate:"min=1,max=100"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req RecommendRequest
//	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	        return
//	    }
//	}
//
// # Thread Safety
//
// The validator is initialized once and caches struct metadata, so
// ValidateStruct is safe and cheap to call from concurrent handlers.
package validation
