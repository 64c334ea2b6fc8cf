// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Processing paths for a turn.
const (
	PathRefuse       = "refuse"
	PathRAGOnly      = "rag_only"
	PathRAGPlusTools = "rag_plus_tools"
)

// Tool record statuses.
const (
	ToolStatusOK     = "ok"
	ToolStatusFailed = "failed"
)

// AuthContext describes who is asking, as resolved from the request
// credential. Resolution never fails: an invalid or absent credential
// produces an anonymous context with Authenticated false.
type AuthContext struct {
	// SubjectID is the student registration number the credential maps to
	// (e.g. "VU/2021/0042"). Empty for anonymous callers.
	SubjectID string `json:"subject_id,omitempty"`

	// DisplayName is a human-readable name for prompt personalization.
	DisplayName string `json:"display_name,omitempty"`

	// Roles carries the credential's role memberships ("student",
	// "staff") for handler-level authorization checks.
	Roles []string `json:"roles,omitempty"`

	// Authenticated reports whether the credential resolved to a known
	// subject. Personal-information tools are only available when true.
	Authenticated bool `json:"authenticated"`
}

// Anonymous returns the AuthContext for an unauthenticated caller.
func Anonymous() AuthContext {
	return AuthContext{Authenticated: false}
}

// Message is a single conversation entry, either the user's query or the
// assistant's reply. Exactly one user/assistant pair is appended per turn.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`

	// Rating is the 1-5 feedback score attached after the fact.
	// 0 means unrated.
	Rating  int    `json:"rating,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// NewMessage creates a Message with a generated ID and current timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        generateUUID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ToolRecord captures one tool invocation made while answering a turn.
//
// A record is written for every attempt, including failures and timeouts.
// Timed-out invocations are recorded with Status "failed" and DurationMs
// equal to the configured tool timeout. SubjectID is the student whose
// records were looked up; it always matches the resolved caller.
type ToolRecord struct {
	Tool       string            `json:"tool"`
	SubjectID  string            `json:"subject_id,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
	Status     string            `json:"status"`
	Output     string            `json:"output,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// Passage is a ranked knowledge-base snippet from retrieval.
type Passage struct {
	Content  string  `json:"content"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// SourceInfo is the client-facing attribution for a passage used in an
// answer. Snippet is truncated for display.
type SourceInfo struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Turn is the persisted record of one completed conversation turn.
//
// Turns are append-only: a turn is written atomically with both of its
// messages, or not at all.
type Turn struct {
	Seq         uint64       `json:"seq"`
	RequestID   string       `json:"request_id"`
	SubjectID   string       `json:"subject_id,omitempty"`
	Path        string       `json:"path"`
	Intent      string       `json:"intent,omitempty"`
	UserMessage Message      `json:"user_message"`
	Reply       Message      `json:"reply"`
	ToolRecords []ToolRecord `json:"tool_records,omitempty"`
	Sources     []SourceInfo `json:"sources,omitempty"`
	Escalated   bool         `json:"escalated"`
	CreatedAt   int64        `json:"created_at"`
}

// Conversation is the full transcript returned by the conversation
// retrieval endpoint.
type Conversation struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`
}

// Messages flattens a conversation's turns into the ordered message list.
func (c *Conversation) Messages() []Message {
	msgs := make([]Message, 0, len(c.Turns)*2)
	for _, t := range c.Turns {
		msgs = append(msgs, t.UserMessage, t.Reply)
	}
	return msgs
}

// Escalation is a record handed to the human support queue when the
// assistant could not give a grounded answer.
type Escalation struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SubjectID      string `json:"subject_id,omitempty"`
	Query          string `json:"query"`
	Reason         string `json:"reason"`
	CreatedAt      int64  `json:"created_at"`
}

// NewEscalation creates an Escalation with a generated ID and current
// timestamp.
func NewEscalation(conversationID, subjectID, query, reason string) Escalation {
	return Escalation{
		ID:             generateUUID(),
		ConversationID: conversationID,
		SubjectID:      subjectID,
		Query:          query,
		Reason:         reason,
		CreatedAt:      time.Now().UnixMilli(),
	}
}
