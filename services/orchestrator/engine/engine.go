// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine runs the turn state machine.
//
// # Description
//
// A turn moves through a fixed sequence of states:
//
//	start -> auth_check -> {refuse | rag_only | rag_plus_tools} -> synthesize -> done
//
// The auth check routes on the query intent and the caller's identity.
// Personal or ambiguous questions from anonymous callers are refused
// without touching retrieval or the records service. Authenticated
// callers get knowledge base retrieval plus record lookups, run
// concurrently. Every processed turn appends exactly one user/assistant
// message pair to the conversation store, atomically.
//
// Synthesis failure is the only fatal error in a turn. Everything else
// (retrieval outage, tool timeout) degrades into an honest reply and,
// where warranted, an escalation to the human support queue.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Turns on the same conversation are
// serialized by the store's append lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/VarsityAI/VarsityAssist/pkg/extensions"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/intent"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/observability"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/retrieval"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/store"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/synthesis"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/tools"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// engineTracer is the OpenTelemetry tracer for turn processing.
var engineTracer = otel.Tracer("varsity.orchestrator.engine")

// snippetMaxRunes caps the source snippet length in responses.
const snippetMaxRunes = 200

// maxSources caps how many source attributions a response carries.
const maxSources = 5

// RefusalAnswer is the reply for personal questions from anonymous
// callers. Sent without a model call.
const RefusalAnswer = "I can only look up personal academic records for signed-in students. " +
	"Please log in through the student portal and ask again. " +
	"I'm happy to answer general questions about the university in the meantime."

// =============================================================================
// Construction
// =============================================================================

// Options carries the engine's dependencies.
type Options struct {
	Classifier  intent.Classifier
	Searcher    retrieval.Searcher
	Planner     *tools.Planner
	Invoker     tools.Invoker
	Synthesizer synthesis.Synthesizer
	Store       store.Store

	// Metrics is optional. When nil, no metrics are recorded.
	Metrics *observability.TurnMetrics

	// Audit records compliance events (refusals, record access,
	// escalations). Defaults to the no-op logger.
	Audit extensions.AuditLogger

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MaxPassages caps retrieval results per turn.
	// Defaults to retrieval.DefaultMaxPassages.
	MaxPassages int
}

// Engine processes turns.
type Engine struct {
	classifier  intent.Classifier
	searcher    retrieval.Searcher
	planner     *tools.Planner
	invoker     tools.Invoker
	synthesizer synthesis.Synthesizer
	store       store.Store
	metrics     *observability.TurnMetrics
	audit       extensions.AuditLogger
	logger      *slog.Logger
	maxPassages int
}

// New creates an Engine. All dependencies except Metrics and Logger are
// required.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Classifier == nil:
		return nil, errors.New("engine requires an intent classifier")
	case opts.Searcher == nil:
		return nil, errors.New("engine requires a searcher")
	case opts.Planner == nil:
		return nil, errors.New("engine requires a tool planner")
	case opts.Invoker == nil:
		return nil, errors.New("engine requires a tool invoker")
	case opts.Synthesizer == nil:
		return nil, errors.New("engine requires a synthesizer")
	case opts.Store == nil:
		return nil, errors.New("engine requires a conversation store")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPassages := opts.MaxPassages
	if maxPassages <= 0 {
		maxPassages = retrieval.DefaultMaxPassages
	}
	audit := opts.Audit
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}

	return &Engine{
		classifier:  opts.Classifier,
		searcher:    opts.Searcher,
		planner:     opts.Planner,
		invoker:     opts.Invoker,
		synthesizer: opts.Synthesizer,
		store:       opts.Store,
		metrics:     opts.Metrics,
		audit:       audit,
		logger:      logger,
		maxPassages: maxPassages,
	}, nil
}

// =============================================================================
// Turn Processing
// =============================================================================

// Process runs one turn through the state machine and persists it.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - req: The validated turn request. Defaults are filled in.
//   - acx: The resolved caller identity. Never nil-equivalent; anonymous
//     callers carry Authenticated false.
//
// # Outputs
//
//   - *datatypes.TurnResponse: The reply, sources, and escalation state.
//   - error: Non-nil only when the turn could not be persisted.
func (e *Engine) Process(ctx context.Context, req *datatypes.TurnRequest, acx datatypes.AuthContext) (*datatypes.TurnResponse, error) {
	ctx, span := engineTracer.Start(ctx, "ProcessTurn")
	defer span.End()

	start := time.Now()
	if e.metrics != nil {
		e.metrics.TurnStarted()
		defer e.metrics.TurnEnded()
	}

	req.EnsureDefaults()
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	queryIntent := e.classifier.Classify(req.Query)
	path := route(queryIntent, acx)
	if e.metrics != nil {
		e.metrics.RecordClassification(string(queryIntent))
	}

	span.SetAttributes(
		attribute.String("turn.intent", string(queryIntent)),
		attribute.String("turn.path", path),
		attribute.Bool("auth.authenticated", acx.Authenticated),
	)

	turn := &datatypes.Turn{
		RequestID:   req.RequestID,
		SubjectID:   acx.SubjectID,
		Path:        path,
		Intent:      string(queryIntent),
		UserMessage: datatypes.NewMessage(datatypes.RoleUser, req.Query),
		CreatedAt:   time.Now().UnixMilli(),
	}

	var (
		answer       string
		escalate     bool
		escalation   datatypes.Escalation
		escalateWhy  string
		synthFailure bool
	)

	switch path {
	case datatypes.PathRefuse:
		answer = RefusalAnswer
		e.recordAudit(ctx, acx, extensions.AuditEvent{
			EventType:    "turn.refused",
			Action:       "read",
			ResourceType: "conversation",
			ResourceID:   conversationID,
			Outcome:      "blocked",
		})

	default:
		passages, records := e.gatherContext(ctx, req.Query, acx, path)
		turn.ToolRecords = records
		turn.Sources = sourcesFrom(passages)

		for _, rec := range records {
			outcome := "success"
			if rec.Status == datatypes.ToolStatusFailed {
				outcome = "failure"
			}
			e.recordAudit(ctx, acx, extensions.AuditEvent{
				EventType:    "tool.invoke",
				Action:       "read",
				ResourceType: "student_record",
				ResourceID:   acx.SubjectID,
				Outcome:      outcome,
				Metadata: map[string]any{
					"conversation_id": conversationID,
					"tool":            rec.Tool,
					"duration_ms":     rec.DurationMs,
				},
			})
		}

		history := e.conversationHistory(ctx, conversationID)

		result, err := e.synthesizer.Synthesize(ctx, synthesis.Input{
			Query:       req.Query,
			Auth:        acx,
			Passages:    passages,
			ToolRecords: records,
			History:     history,
		})
		if err != nil {
			var failure *synthesis.SynthesisFailure
			if !errors.As(err, &failure) {
				failure = &synthesis.SynthesisFailure{Err: err}
			}
			span.RecordError(failure)
			span.SetStatus(codes.Error, "synthesis failed")
			e.logger.Error("synthesis failed, replying with apology",
				slog.String("conversation_id", conversationID),
				slog.String("error", failure.Error()),
			)
			answer = synthesis.FallbackApology
			escalate = true
			escalateWhy = failure.Error()
			synthFailure = true
		} else {
			answer = result.Answer
			escalate = result.Escalate
			escalateWhy = result.EscalationReason
		}
	}

	if escalate {
		escalation = datatypes.NewEscalation(conversationID, acx.SubjectID, req.Query, escalateWhy)
		if err := e.store.AddEscalation(ctx, escalation); err != nil {
			// The reply still goes out; losing the queue entry is logged.
			e.logger.Error("failed to record escalation",
				slog.String("conversation_id", conversationID),
				slog.String("error", err.Error()),
			)
		}
		if e.metrics != nil {
			e.metrics.RecordEscalation(escalationReason(turn.ToolRecords, escalateWhy, synthFailure))
		}
		e.recordAudit(ctx, acx, extensions.AuditEvent{
			EventType:    "turn.escalated",
			Action:       "create",
			ResourceType: "escalation",
			ResourceID:   escalation.ID,
			Outcome:      "success",
			Metadata: map[string]any{
				"conversation_id": conversationID,
				"reason":          escalateWhy,
			},
		})
	}

	turn.Reply = datatypes.NewMessage(datatypes.RoleAssistant, answer)
	turn.Escalated = escalate

	seq, err := e.store.AppendTurn(ctx, conversationID, turn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		if e.metrics != nil {
			e.metrics.RecordTurn(path, false, time.Since(start).Seconds())
		}
		return nil, fmt.Errorf("persist turn: %w", err)
	}
	span.SetAttributes(attribute.Int64("turn.seq", int64(seq)))

	if e.metrics != nil {
		e.metrics.RecordTurn(path, true, time.Since(start).Seconds())
		for _, rec := range turn.ToolRecords {
			e.metrics.RecordToolInvocation(rec.Tool, rec.Status, float64(rec.DurationMs)/1000)
		}
	}

	resp := datatypes.NewTurnResponse(req.RequestID, conversationID, answer, path)
	resp.Sources = turn.Sources
	for _, rec := range turn.ToolRecords {
		resp.ToolsUsed = append(resp.ToolsUsed, rec.Tool)
	}
	resp.Escalated = escalate
	if escalate {
		resp.EscalationID = escalation.ID
	}
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// route maps an intent and caller identity to a processing path.
//
// Ambiguous queries lean personal: an authenticated caller gets record
// lookups so the answer can use their data, an anonymous one is refused
// rather than risk a personal answer without identity.
func route(queryIntent intent.Intent, acx datatypes.AuthContext) string {
	switch queryIntent {
	case intent.PublicInformation:
		return datatypes.PathRAGOnly
	case intent.PersonalInformation, intent.Ambiguous:
		if acx.Authenticated {
			return datatypes.PathRAGPlusTools
		}
		return datatypes.PathRefuse
	default:
		return datatypes.PathRefuse
	}
}

// gatherContext runs retrieval and, on the tools path, the planned record
// lookups. Retrieval and lookups run concurrently; none of them fail the
// turn.
func (e *Engine) gatherContext(ctx context.Context, query string, acx datatypes.AuthContext, path string) ([]datatypes.Passage, []datatypes.ToolRecord) {
	ctx, span := engineTracer.Start(ctx, "GatherContext")
	defer span.End()

	var passages []datatypes.Passage
	var records []datatypes.ToolRecord

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		found, err := e.searcher.Search(gctx, query, nil, e.maxPassages)
		if err != nil {
			span.RecordError(err)
			e.logger.Warn("knowledge base search failed, continuing without passages",
				slog.String("error", err.Error()),
			)
			return nil
		}
		passages = found
		return nil
	})

	if path == datatypes.PathRAGPlusTools {
		calls := e.planner.Plan(query)
		records = make([]datatypes.ToolRecord, len(calls))
		for i, call := range calls {
			g.Go(func() error {
				rec, err := e.invoker.Invoke(gctx, acx.SubjectID, call)
				if err != nil {
					// Guard violations should not occur on this path.
					rec = datatypes.ToolRecord{
						Tool:      call.Tool,
						SubjectID: acx.SubjectID,
						Args:      call.Args,
						Status:    datatypes.ToolStatusFailed,
						Error:     err.Error(),
					}
				}
				records[i] = rec
				return nil
			})
		}
	}

	g.Wait()
	span.SetAttributes(
		attribute.Int("context.passages", len(passages)),
		attribute.Int("context.tool_records", len(records)),
	)
	return passages, records
}

// recordAudit emits a compliance event. Audit failures never affect the
// turn; they are logged and forgotten.
func (e *Engine) recordAudit(ctx context.Context, acx datatypes.AuthContext, event extensions.AuditEvent) {
	event.Timestamp = time.Now().UTC()
	event.UserID = acx.SubjectID
	if event.UserID == "" {
		event.UserID = "anonymous"
	}
	if err := e.audit.Log(ctx, event); err != nil {
		e.logger.Warn("audit log failed",
			slog.String("event_type", event.EventType),
			slog.String("error", err.Error()),
		)
	}
}

// conversationHistory loads the prior transcript for prompt context.
// A missing conversation is a normal first turn.
func (e *Engine) conversationHistory(ctx context.Context, conversationID string) []datatypes.Message {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("failed to load conversation history",
				slog.String("conversation_id", conversationID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return conv.Messages()
}

// sourcesFrom converts ranked passages to client-facing attributions.
func sourcesFrom(passages []datatypes.Passage) []datatypes.SourceInfo {
	n := len(passages)
	if n > maxSources {
		n = maxSources
	}
	sources := make([]datatypes.SourceInfo, 0, n)
	for _, p := range passages[:n] {
		sources = append(sources, datatypes.SourceInfo{
			Source:  p.SourceID,
			Snippet: truncateRunes(p.Content, snippetMaxRunes),
			Score:   p.Score,
		})
	}
	return sources
}

// escalationReason buckets an escalation for metrics.
func escalationReason(records []datatypes.ToolRecord, why string, synthFailure bool) observability.EscalationReason {
	if synthFailure {
		return observability.ReasonSynthesisFailure
	}
	for _, rec := range records {
		if rec.Status == datatypes.ToolStatusFailed {
			return observability.ReasonToolFailure
		}
	}
	if strings.Contains(why, "deflect") {
		return observability.ReasonDeflection
	}
	return observability.ReasonShortAnswer
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
