// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/VarsityAI/VarsityAssist/services/llm"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
)

// fakeLLM records what it was given and returns a canned reply.
type fakeLLM struct {
	reply    string
	err      error
	prompt   string
	messages []llm.Message
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message, _ llm.GenerationParams) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

const groundedReply = "Your CGPA is 4.52 on a 5-point scale, which places you in first class standing according to the academic regulations in Document 1."

func authedInput() Input {
	return Input{
		Query: "what is my cgpa?",
		Auth: datatypes.AuthContext{
			SubjectID:     "VU/2021/0042",
			DisplayName:   "Ada Obi",
			Authenticated: true,
		},
		Passages: []datatypes.Passage{
			{Content: "First class requires a CGPA of 4.50 or above.", SourceID: "handbook.pdf", Score: 0.91},
		},
		ToolRecords: []datatypes.ToolRecord{
			{Tool: "get_student_cgpa", Status: datatypes.ToolStatusOK, Output: `{"cgpa": 4.52}`},
		},
	}
}

func TestSynthesize_GroundedAnswer(t *testing.T) {
	fake := &fakeLLM{reply: groundedReply}
	s := NewLLMSynthesizer(fake, nil)

	result, err := s.Synthesize(context.Background(), authedInput())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.Answer != groundedReply {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if result.Escalate {
		t.Errorf("grounded answer should not escalate, got reason %q", result.EscalationReason)
	}
}

func TestSynthesize_PromptContents(t *testing.T) {
	fake := &fakeLLM{reply: groundedReply}
	s := NewLLMSynthesizer(fake, nil)

	input := authedInput()
	input.ToolRecords = append(input.ToolRecords, datatypes.ToolRecord{
		Tool:   "get_student_results",
		Status: datatypes.ToolStatusFailed,
		Error:  "timed out",
	})

	if _, err := s.Synthesize(context.Background(), input); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	for _, want := range []string{
		"handbook.pdf",
		"First class requires a CGPA",
		"get_student_cgpa",
		`{"cgpa": 4.52}`,
		"get_student_results could not be retrieved",
		"Ada Obi",
		"QUESTION: what is my cgpa?",
	} {
		if !strings.Contains(fake.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if fake.messages != nil {
		t.Error("an opening turn should not use the chat endpoint")
	}
}

func TestSynthesize_FollowUpUsesChat(t *testing.T) {
	fake := &fakeLLM{reply: groundedReply}
	s := NewLLMSynthesizer(fake, nil)

	input := authedInput()
	input.History = []datatypes.Message{
		datatypes.NewMessage(datatypes.RoleUser, "when is resumption?"),
		datatypes.NewMessage(datatypes.RoleAssistant, "The semester resumes on September 15."),
	}

	if _, err := s.Synthesize(context.Background(), input); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if fake.prompt != "" {
		t.Error("a follow-up turn should not use plain generation")
	}
	if len(fake.messages) != 4 {
		t.Fatalf("got %d messages, want system + 2 history + question", len(fake.messages))
	}

	system := fake.messages[0]
	if system.Role != "system" {
		t.Errorf("first message role = %q, want system", system.Role)
	}
	for _, want := range []string{"handbook.pdf", "get_student_cgpa", "Ada Obi"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system message missing %q", want)
		}
	}

	if fake.messages[1].Role != datatypes.RoleUser || fake.messages[1].Content != "when is resumption?" {
		t.Errorf("history not relayed as role messages: %+v", fake.messages[1])
	}
	if fake.messages[2].Role != datatypes.RoleAssistant {
		t.Errorf("assistant history role = %q", fake.messages[2].Role)
	}

	last := fake.messages[len(fake.messages)-1]
	if last.Role != datatypes.RoleUser || last.Content != "what is my cgpa?" {
		t.Errorf("final message should be the current question, got %+v", last)
	}
}

func TestSynthesize_AnonymousPrompt(t *testing.T) {
	fake := &fakeLLM{reply: "The undergraduate school fees for the current session are listed in Document 1 as 250,000 naira per semester."}
	s := NewLLMSynthesizer(fake, nil)

	input := Input{
		Query: "how much are school fees?",
		Auth:  datatypes.Anonymous(),
		Passages: []datatypes.Passage{
			{Content: "School fees: 250,000 per semester.", SourceID: "fees.pdf", Score: 0.8},
		},
	}
	result, err := s.Synthesize(context.Background(), input)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.Escalate {
		t.Error("public answer should not escalate")
	}
	if !strings.Contains(fake.prompt, "not signed in") {
		t.Error("anonymous prompt should forbid personal claims")
	}
	if strings.Contains(fake.prompt, "STUDENT RECORDS:") {
		t.Error("anonymous prompt should not carry a records section")
	}
}

func TestSynthesize_GenerationError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("connection refused")}
	s := NewLLMSynthesizer(fake, nil)

	_, err := s.Synthesize(context.Background(), authedInput())
	var failure *SynthesisFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected SynthesisFailure, got %v", err)
	}
	if !strings.Contains(failure.Error(), "connection refused") {
		t.Errorf("failure should wrap the cause: %v", failure)
	}
}

func TestSynthesize_EmptyReply(t *testing.T) {
	fake := &fakeLLM{reply: "   \n  "}
	s := NewLLMSynthesizer(fake, nil)

	_, err := s.Synthesize(context.Background(), authedInput())
	var failure *SynthesisFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected SynthesisFailure for blank reply, got %v", err)
	}
}

func TestNeedsEscalation(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		answer  string
		want    bool
		tagWant string
	}{
		{
			name:   "grounded answer",
			input:  authedInput(),
			answer: groundedReply,
			want:   false,
		},
		{
			name: "failed tool record",
			input: Input{ToolRecords: []datatypes.ToolRecord{
				{Tool: "get_student_cgpa", Status: datatypes.ToolStatusFailed, Error: "timed out"},
			}},
			answer:  groundedReply,
			want:    true,
			tagWant: "get_student_cgpa",
		},
		{
			name:    "deflection phrase",
			input:   authedInput(),
			answer:  "Unfortunately I don't have access to your academic records, so I cannot tell you what your CGPA currently is.",
			want:    true,
			tagWant: "deflects",
		},
		{
			name:    "redirect to office",
			input:   authedInput(),
			answer:  "For questions about your CGPA you should visit the registry office on campus during working hours for assistance.",
			want:    true,
			tagWant: "deflects",
		},
		{
			name:    "too short",
			input:   authedInput(),
			answer:  "It is 4.52.",
			want:    true,
			tagWant: "too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := needsEscalation(tt.input, tt.answer)
			if got != tt.want {
				t.Fatalf("needsEscalation = %v (reason %q), want %v", got, reason, tt.want)
			}
			if tt.want && !strings.Contains(reason, tt.tagWant) {
				t.Errorf("reason %q should mention %q", reason, tt.tagWant)
			}
		})
	}
}
