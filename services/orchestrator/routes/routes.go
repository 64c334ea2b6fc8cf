// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/VarsityAI/VarsityAssist/pkg/extensions"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/auth"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/engine"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/handlers"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/middleware"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// Options carries the dependencies the route table needs.
type Options struct {
	Engine   *engine.Engine
	Store    store.Store
	Resolver *auth.Resolver
	Weaviate *weaviate.Client

	// Authz gates read access to transcripts and the escalation queue.
	// Nil falls back to the allow-everything provider.
	Authz extensions.AuthzProvider

	// EnableMetrics mounts /metrics with the Prometheus handler.
	EnableMetrics bool
}

// SetupRoutes registers all orchestrator endpoints.
//
// /health and /metrics are unauthenticated. Everything under /v1 runs
// the auth middleware, which resolves the caller's identity but never
// rejects a request; the chat engine decides per turn what an anonymous
// caller may do, while the transcript and escalation handlers consult
// the authorization provider themselves.
func SetupRoutes(router *gin.Engine, opts Options) {
	if opts.Authz == nil {
		opts.Authz = &extensions.NopAuthzProvider{}
	}

	router.GET("/health", handlers.HandleHealth())
	if opts.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.Resolver))
	{
		v1.POST("/chat", handlers.HandleChat(opts.Engine))
		v1.GET("/conversations/:id", handlers.HandleGetConversation(opts.Store, opts.Authz))
		v1.POST("/messages/:id/rating", handlers.HandleRateMessage(opts.Store))
		v1.GET("/escalations", handlers.HandleListEscalations(opts.Store, opts.Authz))
		v1.POST("/documents", handlers.HandleIngestDocument(opts.Weaviate))
		v1.GET("/documents", handlers.HandleListDocuments(opts.Weaviate))
	}
}
