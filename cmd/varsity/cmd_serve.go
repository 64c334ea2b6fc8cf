// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator"
	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func runServeCommand(cmd *cobra.Command, args []string) {
	cfg := orchestrator.Config{
		Port:          servePort,
		LLMBackend:    serveLLMBackend,
		WeaviateURL:   serveWeaviateURL,
		RecordsURL:    serveRecordsURL,
		DataDir:       serveDataDir,
		ToolTimeout:   time.Duration(serveToolTimeout) * time.Second,
		EnableMetrics: serveEnableMetrics,
	}

	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

func runVersionCommand(cmd *cobra.Command, args []string) {
	fmt.Printf("varsity %s\n", Version)
}
