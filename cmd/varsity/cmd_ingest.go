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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// ingestRequest mirrors the orchestrator's document ingestion payload.
type ingestRequest struct {
	Content  string `json:"content"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

type ingestResponse struct {
	Status          string `json:"status"`
	Source          string `json:"source"`
	ChunksProcessed int    `json:"chunks_processed"`
}

func runIngestCommand(cmd *cobra.Command, args []string) {
	totalChunks := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Error reading %s: %v", path, err)
		}

		req := ingestRequest{
			Content:  string(data),
			Source:   filepath.Base(path),
			Category: category,
		}

		var resp ingestResponse
		if err := doRequest("POST", "/v1/documents", req, &resp); err != nil {
			log.Fatalf("Error ingesting %s: %v", path, err)
		}

		fmt.Printf("Ingested %s (%d chunks)\n", resp.Source, resp.ChunksProcessed)
		totalChunks += resp.ChunksProcessed
	}

	fmt.Printf("Done: %d files, %d chunks.\n", len(args), totalChunks)
}
