// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetOrchestratorBaseURL_Default(t *testing.T) {
	t.Setenv("VARSITY_ORCHESTRATOR_URL", "")

	got := getOrchestratorBaseURL()
	want := "http://localhost:12210"
	if got != want {
		t.Fatalf("getOrchestratorBaseURL() = %q, want %q", got, want)
	}
}

func TestGetOrchestratorBaseURL_EnvOverride(t *testing.T) {
	t.Setenv("VARSITY_ORCHESTRATOR_URL", "http://campus-stack:9999")

	if got := getOrchestratorBaseURL(); got != "http://campus-stack:9999" {
		t.Fatalf("getOrchestratorBaseURL() = %q, want env override", got)
	}
}

func TestDoRequest_SendsAuthAndDecodes(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "hello"})
	}))
	defer srv.Close()

	t.Setenv("VARSITY_ORCHESTRATOR_URL", srv.URL)
	t.Setenv("VARSITY_TOKEN", "token-xyz")

	var out map[string]string
	err := doRequest("POST", "/v1/chat", map[string]string{"query": "hi"}, &out)
	if err != nil {
		t.Fatalf("doRequest() error = %v", err)
	}

	if gotAuth != "Bearer token-xyz" {
		t.Errorf("Authorization = %q, want bearer token from env", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["query"] != "hi" {
		t.Errorf("request body = %v, want query field", gotBody)
	}
	if out["answer"] != "hello" {
		t.Errorf("decoded response = %v, want answer hello", out)
	}
}

func TestDoRequest_ErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "query is required"}`))
	}))
	defer srv.Close()

	t.Setenv("VARSITY_ORCHESTRATOR_URL", srv.URL)
	t.Setenv("VARSITY_TOKEN", "")

	err := doRequest("POST", "/v1/chat", map[string]string{}, nil)
	if err == nil {
		t.Fatal("doRequest() error = nil, want error on 400")
	}
	if !strings.Contains(err.Error(), "query is required") {
		t.Errorf("error = %v, want server message included", err)
	}
}

func TestDoRequest_NilOutDiscardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "rated"}`))
	}))
	defer srv.Close()

	t.Setenv("VARSITY_ORCHESTRATOR_URL", srv.URL)
	t.Setenv("VARSITY_TOKEN", "")

	if err := doRequest("POST", "/v1/messages/abc/rating", map[string]int{"rating": 5}, nil); err != nil {
		t.Fatalf("doRequest() error = %v", err)
	}
}
