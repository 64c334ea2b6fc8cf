// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header
// and resolves it to an AuthContext, which it stores in the Gin context for
// downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► resolver.Resolve(ctx, token)
//	   │
//	   └─► Store AuthContext in context
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthContext)
//
// Resolution never fails and the middleware never rejects a request: an
// absent, malformed, or unknown credential yields an anonymous context,
// and the engine decides what an anonymous caller may ask. A 401 here
// would leak whether a credential exists; a refusal downstream does not.
package middleware

import (
	"strings"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/auth"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Context Keys
// =============================================================================

// authContextKey is the context key for storing the resolved AuthContext.
const authContextKey = "varsity_auth_context"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthContext stores the resolved caller identity in the Gin context.
//
// Called by AuthMiddleware; handlers retrieve it via GetAuthContext.
func SetAuthContext(c *gin.Context, acx datatypes.AuthContext) {
	c.Set(authContextKey, acx)
}

// GetAuthContext retrieves the resolved caller identity from the Gin
// context. Returns the anonymous context when the middleware did not run
// or stored an unexpected type.
//
// # Examples
//
//	func (h *handler) HandleChat(c *gin.Context) {
//	    acx := middleware.GetAuthContext(c)
//	    // acx.Authenticated, acx.SubjectID
//	}
func GetAuthContext(c *gin.Context) datatypes.AuthContext {
	if v, exists := c.Get(authContextKey); exists {
		if acx, ok := v.(datatypes.AuthContext); ok {
			return acx
		}
	}
	return datatypes.Anonymous()
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware creates a Gin middleware that resolves the caller's
// identity.
//
// # Description
//
// Extracts the bearer token from the Authorization header, resolves it
// with the given resolver, and stores the resulting AuthContext for
// downstream handlers. The middleware always calls the next handler;
// invalid credentials resolve to the anonymous context rather than a 401.
//
// # Inputs
//
//   - resolver: Identity resolver. Must not be nil.
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.AuthMiddleware(resolver))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		acx := resolver.Resolve(c.Request.Context(), token)
		SetAuthContext(c, acx)
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// Parses the Authorization header expecting format: "Bearer <token>".
// Returns empty string if the header is missing or malformed. The
// "Bearer" prefix is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
