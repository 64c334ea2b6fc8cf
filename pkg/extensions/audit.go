// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// # Event Categories
//
// Events are categorized by type for filtering and alerting:
//   - Authentication: "auth.resolved", "auth.failed"
//   - Turns: "turn.completed", "turn.refused", "turn.escalated"
//   - Tools: "tool.invoke", "tool.timeout"
//   - System: "system.start", "system.stop", "system.error"
//
// Student records access is compliance-sensitive; always populate
// UserID, Timestamp, and ResourceType/ResourceID for tool invocations.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "tool.invoke",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       authInfo.UserID,
//	    Action:       "read",
//	    ResourceType: "student_record",
//	    ResourceID:   subjectID,
//	    Outcome:      "success",
//	}
type AuditEvent struct {
	// EventType categorizes the event.
	// Format: "category.action" (e.g., "turn.refused", "tool.invoke")
	EventType string

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who performed the action.
	// Use "system" for automated actions, "anonymous" if unknown.
	UserID string

	// Action describes what operation was attempted.
	// Common values: "create", "read", "send", "receive"
	Action string

	// ResourceType is the category of resource involved.
	// Examples: "message", "conversation", "student_record", "escalation"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked", "error"
	Outcome string

	// Metadata holds additional event-specific data, such as
	// "conversation_id", "tool", "duration_ms", or "error".
	Metadata map[string]any
}

// AuditFilter defines criteria for querying audit events.
//
// All fields are optional; only non-zero values are used as filters,
// combined with AND logic.
type AuditFilter struct {
	// EventTypes limits results to specific event types.
	EventTypes []string

	// UserID limits results to events from a specific account.
	UserID string

	// StartTime is the earliest timestamp to include (inclusive).
	StartTime time.Time

	// EndTime is the latest timestamp to include (exclusive).
	EndTime time.Time

	// ResourceType limits results to events for a resource category.
	ResourceType string

	// ResourceID limits results to events for a specific resource.
	ResourceID string

	// Outcome limits results to events with a specific outcome.
	Outcome string

	// Limit is the maximum number of events to return.
	Limit int

	// Offset is the number of events to skip (for pagination).
	Offset int
}

// AuditLogger records security-relevant events for compliance and
// incident analysis.
//
// Implementations must be safe for concurrent use. The Log method should
// be non-blocking or have reasonable timeouts so auditing never slows a
// turn. The default NopAuditLogger discards everything, which is
// appropriate for local single-user deployments.
type AuditLogger interface {
	// Log records an event. Implementations should set Timestamp if
	// zero, persist or transmit the event, and return quickly.
	Log(ctx context.Context, event AuditEvent) error

	// Query retrieves events matching the filter, ordered by Timestamp
	// descending. NopAuditLogger returns an empty slice.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush ensures all buffered events are persisted. Call before
	// shutdown to prevent event loss.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger. It discards all events.
//
// Thread-safe: this implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns an empty slice (no events are stored).
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// Compile-time interface compliance check.
var _ AuditLogger = (*NopAuditLogger)(nil)
