// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import "testing"

func TestKeywordClassifier_Classify(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name  string
		query string
		want  Intent
	}{
		{"cgpa question", "What is my CGPA?", PersonalInformation},
		{"results question", "show me my results for last semester", PersonalInformation},
		{"graduation question", "Can I graduate this session?", PersonalInformation},
		{"eligibility question", "Am I eligible for CSC301?", PersonalInformation},
		{"can take phrasing", "Which courses can I take next semester?", PersonalInformation},
		{"personal beats public", "what are the prerequisites for my registered courses", PersonalInformation},
		{"calendar question", "When does the second semester start?", PublicInformation},
		{"prerequisite question", "What are the prerequisites for CSC301?", PublicInformation},
		{"fees question", "How much are school fees for returning students?", PublicInformation},
		{"admission question", "How do I apply for admission?", PublicInformation},
		{"greeting", "hello there", Ambiguous},
		{"vague", "tell me about the department", Ambiguous},
		{"empty", "", Ambiguous},
		{"whitespace only", "   ", Ambiguous},
		{"case insensitive", "WHEN DOES the semester START?", PublicInformation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.query); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

// The word "mystery" must not trip the "my " indicator.
func TestKeywordClassifier_NoSubstringFalsePositive(t *testing.T) {
	c := NewKeywordClassifier()
	if got := c.Classify("explain the mystery courses in the catalog"); got == PersonalInformation {
		t.Errorf("Classify misread an embedded substring as personal")
	}
}

func TestNewKeywordClassifierFromConfig(t *testing.T) {
	c, err := NewKeywordClassifierFromConfig(Config{
		PersonalPatterns: []string{`\bmatric(ulation)? number\b`},
		PublicPatterns:   []string{`\bfaculty of \w+\b`},
	})
	if err != nil {
		t.Fatalf("NewKeywordClassifierFromConfig: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  Intent
	}{
		{"personal pattern fallback", "matric number lookup please", PersonalInformation},
		{"public pattern fallback", "tell me about the faculty of science", PublicInformation},
		{"indicators still win", "What is my CGPA?", PersonalInformation},
		{"no match stays ambiguous", "hello there", Ambiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.query); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate_RejectsBadPattern(t *testing.T) {
	cfg := Config{PersonalPatterns: []string{`[unclosed`}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted an invalid regex")
	}
	if _, err := NewKeywordClassifierFromConfig(cfg); err == nil {
		t.Fatal("NewKeywordClassifierFromConfig accepted an invalid regex")
	}
}
