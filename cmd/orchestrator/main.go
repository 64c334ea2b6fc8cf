// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the VarsityAssist orchestrator HTTP server.
//
// This is the main entry point for the containerized orchestrator service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - LLM_BACKEND_TYPE: LLM provider - ollama, openai (default: ollama)
//   - WEAVIATE_SERVICE_URL: Weaviate knowledge base URL (default: http://localhost:8080)
//   - RECORDS_SERVICE_URL: student records service URL (default: http://localhost:12260)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: varsity-otel-collector:4317)
//   - CONVERSATION_DATA_DIR: conversation store directory (default: ./data/conversations)
//   - TOOL_TIMEOUT_SECONDS: per-tool invocation timeout (default: 10)
//   - ENABLE_METRICS: mount /metrics and record turn metrics (default: true)
//   - LOG_DIR: mirror logs to a dated JSON file in this directory (optional)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
//
//	# Or via container
//	podman-compose up orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/VarsityAI/VarsityAssist/pkg/logging"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator"
)

func main() {
	// Setup structured logging. LOG_DIR additionally mirrors entries to
	// a dated JSON file.
	logger := logging.New(logging.Config{
		Service: "orchestrator",
		JSON:    true,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:          getEnvInt("ORCHESTRATOR_PORT", 12210),
		LLMBackend:    getEnvString("LLM_BACKEND_TYPE", "ollama"),
		WeaviateURL:   os.Getenv("WEAVIATE_SERVICE_URL"),
		RecordsURL:    os.Getenv("RECORDS_SERVICE_URL"),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DataDir:       os.Getenv("CONVERSATION_DATA_DIR"),
		ToolTimeout:   time.Duration(getEnvInt("TOOL_TIMEOUT_SECONDS", 10)) * time.Second,
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
		"records_url", cfg.RecordsURL,
	)

	// Create orchestrator with default (no-op) extension options.
	// Campus deployments pass custom ServiceOptions here.
	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
