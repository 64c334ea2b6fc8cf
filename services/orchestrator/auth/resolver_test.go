// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"testing"

	"github.com/VarsityAI/VarsityAssist/pkg/extensions"
)

func TestResolver_Resolve_ValidCredential(t *testing.T) {
	provider := extensions.NewStaticTokenAuthProvider(map[string]*extensions.AuthInfo{
		"token-abc": {
			UserID: "user-1",
			Roles:  []string{"student"},
			Metadata: map[string]any{
				"student_id":   "VU/2021/0042",
				"display_name": "Ada Okafor",
			},
		},
	})
	r := NewResolver(provider)

	acx := r.Resolve(context.Background(), "token-abc")
	if !acx.Authenticated {
		t.Fatal("expected authenticated context")
	}
	if acx.SubjectID != "VU/2021/0042" {
		t.Errorf("SubjectID = %q, want VU/2021/0042", acx.SubjectID)
	}
	if acx.DisplayName != "Ada Okafor" {
		t.Errorf("DisplayName = %q, want Ada Okafor", acx.DisplayName)
	}
}

func TestResolver_Resolve_NeverFails(t *testing.T) {
	provider := extensions.NewStaticTokenAuthProvider(map[string]*extensions.AuthInfo{
		"token-abc": {
			UserID:   "user-1",
			Metadata: map[string]any{"student_id": "VU/2021/0042"},
		},
		"no-binding": {
			UserID: "staff-1",
			Roles:  []string{"staff"},
		},
	})
	r := NewResolver(provider)

	tests := []struct {
		name       string
		credential string
	}{
		{"empty credential", ""},
		{"unknown token", "garbage"},
		{"valid token without student binding", "no-binding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acx := r.Resolve(context.Background(), tt.credential)
			if acx.Authenticated {
				t.Error("expected anonymous context")
			}
			if acx.SubjectID != "" {
				t.Errorf("SubjectID = %q, want empty", acx.SubjectID)
			}
		})
	}
}

func TestResolver_Resolve_NilProvider(t *testing.T) {
	r := NewResolver(nil)
	acx := r.Resolve(context.Background(), "anything")
	if acx.Authenticated {
		t.Error("nil provider must resolve to anonymous")
	}
}
