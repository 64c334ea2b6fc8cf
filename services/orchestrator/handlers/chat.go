// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides the HTTP handlers for the orchestrator API.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/engine"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var handlerTracer = otel.Tracer("varsity.orchestrator.handlers")

// HandleChat processes one conversation turn.
//
// POST /v1/chat
//
// The request body is a datatypes.TurnRequest. The caller's identity
// comes from the auth middleware; anonymous callers are served, not
// rejected, and the engine refuses personal questions for them.
func HandleChat(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.TurnRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		acx := middleware.GetAuthContext(c)

		resp, err := eng.Process(ctx, &req, acx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Turn processing failed", "error", err, "request_id", req.RequestID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process turn"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
