// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/VarsityAI/VarsityAssist/pkg/extensions"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/middleware"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/store"
	"github.com/gin-gonic/gin"
)

// authorize runs the deployment's authorization provider for the
// resolved caller. Anonymous callers authorize with a nil User, so the
// default NopAuthzProvider keeps local deployments open while a real
// provider can lock these endpoints down.
func authorize(c *gin.Context, authz extensions.AuthzProvider, action, resourceType, resourceID string) bool {
	acx := middleware.GetAuthContext(c)

	var user *extensions.AuthInfo
	if acx.Authenticated {
		user = &extensions.AuthInfo{UserID: acx.SubjectID, Roles: acx.Roles}
	}
	err := authz.Authorize(c.Request.Context(), extensions.AuthzRequest{
		User:         user,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	if err != nil {
		slog.Warn("Authorization denied",
			"subject", acx.SubjectID,
			"action", action,
			"resource_type", resourceType,
			"error", err,
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return false
	}
	return true
}

// HandleGetConversation returns a conversation transcript.
//
// GET /v1/conversations/:id
func HandleGetConversation(st store.Store, authz extensions.AuthzProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if len(id) > datatypes.MaxConversationIDBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id too long"})
			return
		}
		if !authorize(c, authz, "read", "conversation", id) {
			return
		}

		conv, err := st.GetConversation(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			slog.Error("Failed to load conversation", "conversation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
			return
		}

		c.JSON(http.StatusOK, conv)
	}
}

// HandleRateMessage attaches a rating to a stored message.
//
// POST /v1/messages/:id/rating
func HandleRateMessage(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var req datatypes.RatingRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := st.RateMessage(c.Request.Context(), id, req); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
				return
			}
			slog.Error("Failed to rate message", "message_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store rating"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "rated"})
	}
}

// HandleListEscalations returns the queue of turns awaiting human
// follow-up, oldest first.
//
// The queue carries other students' queries, so anonymous callers are
// rejected outright and authenticated ones still pass the deployment's
// authorization provider.
//
// GET /v1/escalations
func HandleListEscalations(st store.Store, authz extensions.AuthzProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		acx := middleware.GetAuthContext(c)
		if !acx.Authenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !authorize(c, authz, "read", "escalation", "") {
			return
		}

		escalations, err := st.ListEscalations(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list escalations", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list escalations"})
			return
		}
		if escalations == nil {
			escalations = []datatypes.Escalation{}
		}
		c.JSON(http.StatusOK, gin.H{"escalations": escalations})
	}
}
