// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth resolves request credentials into an AuthContext.
//
// Resolution is deliberately infallible: a missing, malformed, or unknown
// credential degrades to an anonymous context instead of an error. The
// orchestrator decides per-turn what an anonymous caller may do; this
// package never blocks a request.
package auth

import (
	"context"
	"log/slog"

	"github.com/VarsityAI/VarsityAssist/pkg/extensions"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("varsity.orchestrator.auth")

// Resolver maps bearer credentials to an AuthContext.
//
// # Thread Safety
//
// Safe for concurrent use as long as the underlying provider is.
type Resolver struct {
	provider extensions.AuthProvider
}

// NewResolver creates a Resolver backed by the given provider.
// A nil provider behaves as if every credential were unknown.
func NewResolver(provider extensions.AuthProvider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve turns a credential into an AuthContext. It never returns an
// error: validation failures of any kind produce an anonymous context.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - credential: The bearer token from the request, possibly empty.
//
// # Outputs
//
//   - datatypes.AuthContext: Authenticated subject, or anonymous.
func (r *Resolver) Resolve(ctx context.Context, credential string) datatypes.AuthContext {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	if r.provider == nil || credential == "" {
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		return datatypes.Anonymous()
	}

	info, err := r.provider.Validate(ctx, credential)
	if err != nil || info == nil {
		// Invalid credentials are not an error condition for a turn.
		// The caller simply proceeds without personal capabilities.
		slog.Debug("Credential did not resolve, continuing as anonymous", "error", err)
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		return datatypes.Anonymous()
	}

	subjectID := info.StudentID()
	if subjectID == "" {
		// A valid token without a student binding (e.g. a staff service
		// account) still cannot access student records.
		slog.Warn("Credential resolved without a student binding", "user_id", info.UserID)
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		return datatypes.Anonymous()
	}

	displayName, _ := info.Metadata["display_name"].(string)
	span.SetAttributes(
		attribute.Bool("auth.authenticated", true),
		attribute.String("auth.subject_id", subjectID),
	)

	return datatypes.AuthContext{
		SubjectID:     subjectID,
		DisplayName:   displayName,
		Roles:         append([]string(nil), info.Roles...),
		Authenticated: true,
	}
}
