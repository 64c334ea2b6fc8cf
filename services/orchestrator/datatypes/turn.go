// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the request and response types for the chat turn
// endpoint. Conversation persistence types live in conversation.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a single user query.
	// Checked by byte length, not rune count, to bound memory usage.
	MaxQueryBytes = 32 * 1024 // 32KB

	// MaxConversationIDBytes bounds the conversation identifier length.
	MaxConversationIDBytes = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// turnValidate is the validator instance for turn datatypes.
// Initialized in init() with custom validators.
var turnValidate *validator.Validate

func init() {
	turnValidate = validator.New()
	_ = turnValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed MaxQueryBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxQueryBytes
}

// generateUUID returns a new UUID v4 string.
func generateUUID() string {
	return uuid.New().String()
}

// =============================================================================
// Turn Request Types
// =============================================================================

// TurnRequest is the body of a chat turn submitted by a client.
//
// # Description
//
// TurnRequest carries a single user query for one conversation turn.
// The caller's credential is NOT part of the body; it arrives via the
// Authorization header and is resolved by the auth middleware.
//
// # Fields
//
//   - RequestID: Optional. Unique identifier for this request (UUID v4).
//     Generated server-side when omitted.
//   - Timestamp: Optional. Unix timestamp in milliseconds (UTC).
//     Populated server-side when omitted.
//   - ConversationID: Optional. Identifier of the conversation this turn
//     belongs to. A new conversation is started when omitted.
//   - Query: Required. The user's natural-language question.
//     Limited to 32KB.
//
// # Validation
//
// Uses go-playground/validator:
//   - RequestID: optional, must be valid UUID v4 when present
//   - Query: required, max 32768 bytes
//   - ConversationID: max 128 bytes
type TurnRequest struct {
	RequestID      string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp      int64  `json:"timestamp" validate:"gte=0"`
	ConversationID string `json:"conversation_id" validate:"max=128"`
	Query          string `json:"query" validate:"required,maxbytes"`
}

// Validate validates the TurnRequest fields.
func (r *TurnRequest) Validate() error {
	return turnValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp if the client omitted them.
func (r *TurnRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Turn Response Types
// =============================================================================

// TurnResponse is returned to the client after a completed turn.
//
// # Fields
//
//   - ResponseID: Unique identifier for this response (UUID v4).
//   - RequestID: Echo of the request ID for correlation.
//   - ConversationID: The conversation this turn was appended to.
//     Newly generated when the request did not name one.
//   - Timestamp: Unix timestamp in milliseconds (UTC) when the response
//     was generated.
//   - Answer: The assistant's reply text.
//   - Sources: Knowledge-base passages the answer drew on, best first.
//   - ToolsUsed: Names of the record lookups invoked for this turn,
//     including failed ones. Empty (never null) on the refuse and
//     rag_only paths.
//   - Path: The processing path taken ("refuse", "rag_only", "rag_plus_tools").
//   - Escalated: True when the turn was handed to a human support queue.
//   - EscalationID: Identifier of the escalation record, when Escalated.
//   - ProcessingTimeMs: Wall-clock time spent processing the turn.
type TurnResponse struct {
	ResponseID       string       `json:"response_id"`
	RequestID        string       `json:"request_id"`
	ConversationID   string       `json:"conversation_id"`
	Timestamp        int64        `json:"timestamp"`
	Answer           string       `json:"answer"`
	Sources          []SourceInfo `json:"sources,omitempty"`
	ToolsUsed        []string     `json:"tools_used"`
	Path             string       `json:"path"`
	Escalated        bool         `json:"escalated"`
	EscalationID     string       `json:"escalation_id,omitempty"`
	ProcessingTimeMs int64        `json:"processing_time_ms,omitempty"`
}

// NewTurnResponse creates a TurnResponse with auto-generated ID and timestamp.
func NewTurnResponse(requestID, conversationID, answer, path string) *TurnResponse {
	return &TurnResponse{
		ResponseID:     generateUUID(),
		RequestID:      requestID,
		ConversationID: conversationID,
		Timestamp:      time.Now().UnixMilli(),
		Answer:         answer,
		ToolsUsed:      []string{},
		Path:           path,
	}
}

// =============================================================================
// Rating Types
// =============================================================================

// RatingRequest is the body of a message rating submission.
type RatingRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2048"`
}

// Validate validates the RatingRequest fields.
func (r *RatingRequest) Validate() error {
	return turnValidate.Struct(r)
}
