// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
)

func testInvoker(t *testing.T, handler http.HandlerFunc, opts ...RecordsInvokerOption) *RecordsInvoker {
	t.Helper()
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRecordsInvoker(reg, srv.URL, opts...)
}

func TestRecordsInvoker_Invoke_Success(t *testing.T) {
	var gotPath string
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"cgpa": 4.21}`))
	})

	record, err := inv.Invoke(context.Background(), "VU/2021/0042", Call{Tool: "get_student_cgpa"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if record.Status != datatypes.ToolStatusOK {
		t.Errorf("Status = %q, want ok", record.Status)
	}
	if record.SubjectID != "VU/2021/0042" {
		t.Errorf("SubjectID = %q, want the caller's subject", record.SubjectID)
	}
	if !strings.Contains(record.Output, "4.21") {
		t.Errorf("Output = %q, want cgpa payload", record.Output)
	}
	if gotPath != "/v1/students/VU%2F2021%2F0042/cgpa" {
		t.Errorf("records path = %q", gotPath)
	}
}

func TestRecordsInvoker_Invoke_PathAndQueryArgs(t *testing.T) {
	var gotURL string
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write([]byte(`{}`))
	})

	_, err := inv.Invoke(context.Background(), "S1", Call{
		Tool: "check_prerequisites",
		Args: map[string]string{"course_code": "CSC301"},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(gotURL, "/prerequisites/CSC301") {
		t.Errorf("path arg not expanded: %s", gotURL)
	}

	_, err = inv.Invoke(context.Background(), "S1", Call{
		Tool: "get_student_results",
		Args: map[string]string{"session": "2024/2025"},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(gotURL, "session=2024%2F2025") {
		t.Errorf("query arg not encoded: %s", gotURL)
	}
}

func TestRecordsInvoker_Invoke_MissingSubject(t *testing.T) {
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("records service must not be called without a subject")
	})

	for _, subject := range []string{"", "   "} {
		_, err := inv.Invoke(context.Background(), subject, Call{Tool: "get_student_cgpa"})
		if !errors.Is(err, ErrMissingSubject) {
			t.Errorf("subject %q: expected ErrMissingSubject, got %v", subject, err)
		}
	}
}

func TestRecordsInvoker_Invoke_UnknownTool(t *testing.T) {
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := inv.Invoke(context.Background(), "S1", Call{Tool: "nope"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRecordsInvoker_Invoke_ServerError(t *testing.T) {
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "records db down", http.StatusInternalServerError)
	})

	record, err := inv.Invoke(context.Background(), "S1", Call{Tool: "get_student_profile"})
	if err != nil {
		t.Fatalf("guard error not expected: %v", err)
	}
	if record.Status != datatypes.ToolStatusFailed {
		t.Errorf("Status = %q, want failed", record.Status)
	}
	if !strings.Contains(record.Error, "500") {
		t.Errorf("Error = %q, want status detail", record.Error)
	}
}

func TestRecordsInvoker_Invoke_Timeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, WithTimeout(timeout))

	record, err := inv.Invoke(context.Background(), "S1", Call{Tool: "get_student_cgpa"})
	if err != nil {
		t.Fatalf("guard error not expected: %v", err)
	}
	if record.Status != datatypes.ToolStatusFailed {
		t.Errorf("Status = %q, want failed", record.Status)
	}
	if record.DurationMs != timeout.Milliseconds() {
		t.Errorf("DurationMs = %d, want the timeout budget %d", record.DurationMs, timeout.Milliseconds())
	}
	if !strings.Contains(record.Error, "timed out") {
		t.Errorf("Error = %q, want timeout message", record.Error)
	}
}

func TestRecordsInvoker_Invoke_MissingRequiredArg(t *testing.T) {
	inv := testInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("records service must not be called for an invalid call")
	})

	record, err := inv.Invoke(context.Background(), "S1", Call{Tool: "check_prerequisites"})
	if err != nil {
		t.Fatalf("guard error not expected: %v", err)
	}
	if record.Status != datatypes.ToolStatusFailed {
		t.Errorf("Status = %q, want failed", record.Status)
	}
}
