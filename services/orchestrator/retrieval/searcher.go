// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval searches the public knowledge base for passages
// relevant to a user query.
//
// Retrieval runs on every non-refused turn. It is best-effort: a turn
// can complete with zero passages, and the synthesizer is expected to
// say so honestly rather than invent content.
package retrieval

import (
	"context"
	"fmt"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
)

// DefaultMaxPassages is the number of ranked passages returned per query.
const DefaultMaxPassages = 5

// Searcher retrieves ranked knowledge-base passages for a query.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Searcher interface {
	// Search returns up to limit passages ranked best-first.
	//
	// filters restricts matches by document metadata, keyed by property
	// name ("category", "parent_source"). A nil or empty map searches
	// the whole knowledge base.
	//
	// An empty result is not an error. A non-nil error means the
	// knowledge base was unreachable after retries; callers should
	// degrade rather than abort the turn.
	Search(ctx context.Context, query string, filters map[string]string, limit int) ([]datatypes.Passage, error)
}

// =============================================================================
// Error Types
// =============================================================================

// RetrievalError wraps failures from the knowledge-base backend.
//
// # Fields
//
//   - StatusCode: HTTP status code from the backend, 0 when unknown.
//   - Message: Error detail from the backend.
//   - Retryable: Whether the failure is transient.
type RetrievalError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetrievalError checks if an error is a RetrievalError.
func IsRetrievalError(err error) bool {
	_, ok := err.(*RetrievalError)
	return ok
}
