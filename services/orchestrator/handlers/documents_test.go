// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHandleIngestDocument_Validation(t *testing.T) {
	router := gin.New()
	// Validation failures never reach the client, so nil is safe here.
	router.POST("/v1/documents", HandleIngestDocument(nil))

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing content", `{"source": "handbook.md"}`},
		{"missing source", `{"content": "some text"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/v1/documents", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetSplitterForFile_SplitsMarkdownOnHeadings(t *testing.T) {
	splitter := getSplitterForFile("handbook.md")

	doc := "# Admissions\n\n" + strings.Repeat("Admission details. ", 40) +
		"\n# Fees\n\n" + strings.Repeat("Fee details. ", 40)
	chunks, err := splitter.SplitText(doc)
	if err != nil {
		t.Fatalf("SplitText failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected the document to split into multiple chunks, got %d", len(chunks))
	}
}

func TestGetSplitterForFile_DefaultRespectsChunkSize(t *testing.T) {
	splitter := getSplitterForFile("calendar.txt")

	doc := strings.Repeat("The semester calendar entry. ", 200)
	chunks, err := splitter.SplitText(doc)
	if err != nil {
		t.Fatalf("SplitText failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for a long document, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > CHUNK_SIZE+CHUNK_OVERLAP {
			t.Errorf("chunk %d exceeds configured size: %d bytes", i, len(chunk))
		}
	}
}
