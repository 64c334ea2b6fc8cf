// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists conversation transcripts and escalation records.
//
// The transcript is append-only: a turn is written atomically with both
// of its messages or not at all, and nothing ever rewrites a stored
// turn. Ratings are kept as separate records keyed by message ID so the
// transcript itself stays immutable.
//
// Writes to the same conversation are serialized; writes to different
// conversations proceed concurrently.
package store

import (
	"context"
	"errors"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a conversation or message does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the conversation persistence contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendTurn atomically appends a completed turn to a conversation,
	// assigning and returning its sequence number (1-indexed). The
	// conversation is created on first append.
	AppendTurn(ctx context.Context, conversationID string, turn *datatypes.Turn) (uint64, error)

	// GetConversation returns the full transcript in append order,
	// with any ratings merged into the messages.
	// Returns ErrNotFound for unknown conversations.
	GetConversation(ctx context.Context, conversationID string) (*datatypes.Conversation, error)

	// RateMessage attaches a 1-5 rating to a stored message.
	// Returns ErrNotFound when the message does not exist.
	// Re-rating overwrites the previous rating.
	RateMessage(ctx context.Context, messageID string, rating datatypes.RatingRequest) error

	// AddEscalation records a turn handed to the human support queue.
	AddEscalation(ctx context.Context, esc datatypes.Escalation) error

	// ListEscalations returns all escalations, oldest first.
	ListEscalations(ctx context.Context) ([]datatypes.Escalation, error)

	// Close releases the underlying database.
	Close() error
}
