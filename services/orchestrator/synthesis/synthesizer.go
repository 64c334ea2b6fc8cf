// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package synthesis drafts assistant replies from retrieved passages and
// student record lookups.
//
// The synthesizer is the only component that talks to the language model
// during a turn. Personal facts in a reply must come from the tool records
// of the resolved subject; the knowledge base passages supply general
// university information only. When neither source can support an answer
// the reply says so instead of guessing.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/VarsityAI/VarsityAssist/services/llm"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// synthesisTracer is the OpenTelemetry tracer for synthesizer operations.
var synthesisTracer = otel.Tracer("varsity.orchestrator.synthesis")

// FallbackApology is the reply sent when synthesis itself fails. The turn
// is escalated so a human advisor can follow up.
const FallbackApology = "I'm sorry, something went wrong while putting your answer together. " +
	"I've forwarded your question to a student advisor who will get back to you."

// minAnswerRunes is the shortest reply treated as a real answer. Anything
// shorter is assumed to be a deflection and escalated.
const minAnswerRunes = 50

// maxHistoryMessages bounds how much prior transcript is sent to the
// model; historySnippetBytes bounds each message.
const (
	maxHistoryMessages  = 6
	historySnippetBytes = 300
)

var (
	multiNewlineRegex = regexp.MustCompile(`\n{3,}`)
	controlCharsRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// deflectionPhrases mark replies where the model gave up instead of
// answering. Matched case-insensitively against the generated text.
var deflectionPhrases = []string{
	"i don't have access",
	"i do not have access",
	"i'm unable to help",
	"i am unable to help",
	"contact the",
	"speak to",
	"visit the",
}

// =============================================================================
// Errors
// =============================================================================

// SynthesisFailure indicates the language model could not produce a reply.
// It is the only fatal error in a turn; callers respond with
// FallbackApology and record an escalation.
type SynthesisFailure struct {
	Err error
}

func (e *SynthesisFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis failed: %v", e.Err)
	}
	return "synthesis failed: empty reply from model"
}

func (e *SynthesisFailure) Unwrap() error {
	return e.Err
}

// =============================================================================
// Interfaces
// =============================================================================

// Input carries everything available for drafting one reply.
type Input struct {
	// Query is the user's question for this turn.
	Query string

	// Auth is the resolved caller identity.
	Auth datatypes.AuthContext

	// Passages are ranked knowledge base excerpts, best first.
	Passages []datatypes.Passage

	// ToolRecords are the student record lookups made for this turn,
	// successful or not.
	ToolRecords []datatypes.ToolRecord

	// History is the prior transcript of the conversation, oldest first.
	History []datatypes.Message
}

// Result is a drafted reply plus the escalation decision for the turn.
type Result struct {
	Answer           string
	Escalate         bool
	EscalationReason string
}

// Synthesizer defines the contract for drafting a reply from gathered
// context.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	// Synthesize drafts a reply for the given input.
	//
	// # Outputs
	//
	//   - Result: The reply and whether the turn needs human follow-up.
	//   - error: *SynthesisFailure if the model produced nothing usable.
	Synthesize(ctx context.Context, input Input) (Result, error)
}

// Compile-time interface implementation check.
var _ Synthesizer = (*LLMSynthesizer)(nil)

// =============================================================================
// LLMSynthesizer
// =============================================================================

// LLMSynthesizer drafts replies with a single LLM call per turn.
type LLMSynthesizer struct {
	client llm.LLMClient
	logger *slog.Logger
}

// NewLLMSynthesizer creates an LLMSynthesizer.
func NewLLMSynthesizer(client llm.LLMClient, logger *slog.Logger) *LLMSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSynthesizer{client: client, logger: logger}
}

// Synthesize implements the Synthesizer interface.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, input Input) (Result, error) {
	ctx, span := synthesisTracer.Start(ctx, "Synthesize")
	defer span.End()

	span.SetAttributes(
		attribute.Bool("auth.authenticated", input.Auth.Authenticated),
		attribute.Int("context.passages", len(input.Passages)),
		attribute.Int("context.tool_records", len(input.ToolRecords)),
	)

	temperature := float32(0.2)
	params := llm.GenerationParams{Temperature: &temperature}

	// Follow-up turns go through the chat endpoint so the backend sees
	// the transcript as structured messages; opening turns use plain
	// generation.
	var answer string
	var err error
	if len(input.History) > 0 {
		span.SetAttributes(attribute.Int("context.history", len(input.History)))
		answer, err = s.client.Chat(ctx, buildMessages(input), params)
	} else {
		answer, err = s.client.Generate(ctx, buildPrompt(input), params)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return Result{}, &SynthesisFailure{Err: err}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		span.SetStatus(codes.Error, "empty reply")
		return Result{}, &SynthesisFailure{}
	}

	result := Result{Answer: answer}
	result.Escalate, result.EscalationReason = needsEscalation(input, answer)
	if result.Escalate {
		span.SetAttributes(attribute.String("escalation.reason", result.EscalationReason))
		s.logger.Info("turn flagged for escalation",
			slog.String("reason", result.EscalationReason),
			slog.Bool("authenticated", input.Auth.Authenticated),
		)
	}
	return result, nil
}

// needsEscalation decides whether a drafted reply requires human follow-up.
// Failed record lookups always escalate; so do replies that deflect the
// question or are too short to have answered it.
func needsEscalation(input Input, answer string) (bool, string) {
	for _, rec := range input.ToolRecords {
		if rec.Status == datatypes.ToolStatusFailed {
			return true, fmt.Sprintf("record lookup %s failed: %s", rec.Tool, rec.Error)
		}
	}

	lower := strings.ToLower(answer)
	for _, phrase := range deflectionPhrases {
		if strings.Contains(lower, phrase) {
			return true, fmt.Sprintf("reply deflects the question (%q)", phrase)
		}
	}

	if utf8.RuneCountInString(answer) < minAnswerRunes {
		return true, "reply too short to answer the question"
	}
	return false, ""
}

// =============================================================================
// Prompt Assembly
// =============================================================================

// buildPrompt assembles the single generation prompt for an opening turn.
func buildPrompt(input Input) string {
	var b strings.Builder
	writeContextSections(&b, input)
	b.WriteString(fmt.Sprintf("QUESTION: %s\n", sanitizeForPrompt(input.Query)))
	return b.String()
}

// buildMessages assembles the chat transcript for a follow-up turn: one
// system message carrying the gathered context, the recent history as
// proper role messages, then the current question.
func buildMessages(input Input) []llm.Message {
	var b strings.Builder
	writeContextSections(&b, input)

	messages := make([]llm.Message, 0, maxHistoryMessages+2)
	messages = append(messages, llm.Message{Role: "system", Content: b.String()})
	for _, msg := range recentHistory(input.History, maxHistoryMessages) {
		messages = append(messages, llm.Message{
			Role:    msg.Role,
			Content: sanitizeForPrompt(truncateString(msg.Content, historySnippetBytes)),
		})
	}
	messages = append(messages, llm.Message{
		Role:    datatypes.RoleUser,
		Content: sanitizeForPrompt(input.Query),
	})
	return messages
}

// writeContextSections writes the persona, gathered context, and
// answering instructions shared by both prompt shapes.
func writeContextSections(b *strings.Builder, input Input) {
	b.WriteString("You are a helpful assistant for university students and staff.\n\n")

	if len(input.Passages) > 0 {
		b.WriteString("UNIVERSITY INFORMATION:\n")
		for i, p := range input.Passages {
			b.WriteString(fmt.Sprintf("[Document %d: %s]\n%s\n\n", i+1, p.SourceID, strings.TrimSpace(p.Content)))
		}
	}

	ok, failed := splitRecords(input.ToolRecords)
	if len(ok) > 0 {
		b.WriteString("STUDENT RECORDS:\n")
		for _, rec := range ok {
			b.WriteString(fmt.Sprintf("[%s]\n%s\n\n", rec.Tool, strings.TrimSpace(rec.Output)))
		}
	}
	if len(failed) > 0 {
		b.WriteString("UNAVAILABLE RECORDS:\n")
		for _, rec := range failed {
			b.WriteString(fmt.Sprintf("- %s could not be retrieved\n", rec.Tool))
		}
		b.WriteString("\n")
	}

	b.WriteString("INSTRUCTIONS:\n")
	if input.Auth.Authenticated {
		b.WriteString("- The student you are speaking with is ")
		if input.Auth.DisplayName != "" {
			b.WriteString(input.Auth.DisplayName)
		} else {
			b.WriteString(input.Auth.SubjectID)
		}
		b.WriteString(".\n")
		b.WriteString("- Any statement about this student's own records, grades, or standing must come from the STUDENT RECORDS section above. Never infer or invent personal data.\n")
		if len(ok) == 0 {
			b.WriteString("- No student records were retrieved for this question. If the question needs them, say plainly that the information is not available right now.\n")
		}
		if len(failed) > 0 {
			b.WriteString("- Some record lookups listed under UNAVAILABLE RECORDS failed. Mention that those details could not be retrieved.\n")
		}
	} else {
		b.WriteString("- The person you are speaking with is not signed in. Answer from the UNIVERSITY INFORMATION section only and never state facts about any individual student.\n")
	}
	b.WriteString("- If the provided material does not answer the question, say so honestly instead of guessing.\n")
	b.WriteString("- Answer in plain prose, citing document numbers where relevant.\n\n")
}

// splitRecords partitions tool records by outcome.
func splitRecords(records []datatypes.ToolRecord) (ok, failed []datatypes.ToolRecord) {
	for _, rec := range records {
		if rec.Status == datatypes.ToolStatusOK {
			ok = append(ok, rec)
		} else {
			failed = append(failed, rec)
		}
	}
	return ok, failed
}

// recentHistory returns the last n messages, oldest first.
func recentHistory(history []datatypes.Message, n int) []datatypes.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// sanitizeForPrompt flattens user-controlled text into a single line.
func sanitizeForPrompt(s string) string {
	s = multiNewlineRegex.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = controlCharsRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
