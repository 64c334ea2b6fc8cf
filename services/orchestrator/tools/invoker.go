// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("varsity.orchestrator.tools")

// Sentinel errors for invocation guards.
var (
	// ErrMissingSubject is returned when a tool is invoked without a
	// resolved subject. This is the hard boundary that keeps anonymous
	// callers away from student records.
	ErrMissingSubject = errors.New("tool invocation requires a subject")

	// ErrUnknownTool is returned for names not in the catalog.
	ErrUnknownTool = errors.New("unknown tool")
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 10 * time.Second

// Call names a tool and its arguments for one invocation.
type Call struct {
	Tool string
	Args map[string]string
}

// Invoker executes tool calls for a subject.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Invoker interface {
	// Invoke executes one call and always returns a record, even on
	// failure. The error is non-nil only for invocation guard
	// violations (missing subject, unknown tool); execution failures
	// are reported inside the record with Status "failed".
	Invoke(ctx context.Context, subjectID string, call Call) (datatypes.ToolRecord, error)
}

// RecordsInvoker executes catalog tools against the records service.
type RecordsInvoker struct {
	registry   *Registry
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// RecordsInvokerOption customizes a RecordsInvoker.
type RecordsInvokerOption func(*RecordsInvoker)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) RecordsInvokerOption {
	return func(inv *RecordsInvoker) {
		if d > 0 {
			inv.timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) RecordsInvokerOption {
	return func(inv *RecordsInvoker) {
		if c != nil {
			inv.httpClient = c
		}
	}
}

// NewRecordsInvoker creates an invoker for the records service at baseURL.
func NewRecordsInvoker(registry *Registry, baseURL string, opts ...RecordsInvokerOption) *RecordsInvoker {
	inv := &RecordsInvoker{
		registry:   registry,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Compile-time interface implementation check.
var _ Invoker = (*RecordsInvoker)(nil)

// Invoke implements the Invoker interface.
//
// Every execution attempt produces a ToolRecord. A timed-out invocation
// is recorded with Status "failed" and DurationMs equal to the
// configured timeout, so the transcript shows how long the turn waited.
func (inv *RecordsInvoker) Invoke(ctx context.Context, subjectID string, call Call) (datatypes.ToolRecord, error) {
	ctx, span := tracer.Start(ctx, "RecordsInvoker.Invoke")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Tool))

	if strings.TrimSpace(subjectID) == "" {
		span.SetStatus(codes.Error, "missing subject")
		return datatypes.ToolRecord{}, ErrMissingSubject
	}

	tool, err := inv.registry.Get(call.Tool)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown tool")
		return datatypes.ToolRecord{}, err
	}

	record := datatypes.ToolRecord{
		Tool:      call.Tool,
		SubjectID: subjectID,
		Args:      call.Args,
	}

	if err := tool.ValidateCall(call.Args); err != nil {
		span.RecordError(err)
		record.Status = datatypes.ToolStatusFailed
		record.Error = err.Error()
		return record, nil
	}

	reqURL, err := inv.buildURL(tool, subjectID, call.Args)
	if err != nil {
		span.RecordError(err)
		record.Status = datatypes.ToolStatusFailed
		record.Error = err.Error()
		return record, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	start := time.Now()
	output, err := inv.execute(callCtx, tool.Method, reqURL)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		record.Status = datatypes.ToolStatusFailed
		record.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			// The record shows the full budget, not the raced measurement.
			record.Error = fmt.Sprintf("tool %s timed out after %s", call.Tool, inv.timeout)
			record.DurationMs = inv.timeout.Milliseconds()
		} else {
			record.DurationMs = elapsed.Milliseconds()
		}
		slog.Warn("Tool invocation failed",
			"tool", call.Tool,
			"subject_id", subjectID,
			"error", record.Error,
		)
		return record, nil
	}

	record.Status = datatypes.ToolStatusOK
	record.Output = output
	record.DurationMs = elapsed.Milliseconds()
	span.SetAttributes(attribute.Int64("tool.duration_ms", record.DurationMs))
	return record, nil
}

// buildURL expands the tool's path template and appends the remaining
// arguments as query parameters.
func (inv *RecordsInvoker) buildURL(tool *Tool, subjectID string, args map[string]string) (string, error) {
	path := strings.ReplaceAll(tool.Path, "{subject_id}", url.PathEscape(subjectID))

	query := url.Values{}
	for name, value := range args {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
		} else if value != "" {
			query.Set(name, value)
		}
	}

	if strings.Contains(path, "{") {
		return "", fmt.Errorf("tool %s: unresolved path placeholder in %q", tool.Name, path)
	}

	full := inv.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		full += "?" + encoded
	}
	return full, nil
}

// execute performs the HTTP call and returns the response body.
func (inv *RecordsInvoker) execute(ctx context.Context, method, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create records request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := inv.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", context.DeadlineExceeded
		}
		return "", fmt.Errorf("records service call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read records response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("records service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return string(body), nil
}
