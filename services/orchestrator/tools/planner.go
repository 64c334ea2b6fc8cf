// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"regexp"
	"strings"

	"github.com/VarsityAI/VarsityAssist/pkg/validation"
)

// courseCodeCandidate finds tokens that look like course codes, with or
// without a space between prefix and number ("CSC301", "csc 301").
var courseCodeCandidate = regexp.MustCompile(`(?i)\b[a-z]{2,4}\s?[0-9]{3,4}[a-z]?\b`)

// Planner selects which catalog tools a personal query needs.
//
// The mapping is keyword-driven and intentionally conservative: it only
// adds a tool when the query names the concept the tool serves, and
// falls back to the student profile when nothing matches. The planner
// is pure and safe for concurrent use.
type Planner struct{}

// NewPlanner creates the default planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan maps a personal-information query onto tool calls.
// At least one call is always returned.
func (p *Planner) Plan(query string) []Call {
	q := strings.ToLower(query)
	var calls []Call
	seen := make(map[string]bool)

	add := func(name string, args map[string]string) {
		key := name
		if code, ok := args["course_code"]; ok {
			key += ":" + code
		}
		if !seen[key] {
			seen[key] = true
			calls = append(calls, Call{Tool: name, Args: args})
		}
	}

	if containsAny(q, "cgpa", "gpa", "grade point") {
		add("get_student_cgpa", nil)
	}
	if containsAny(q, "result", "grade", "score", "transcript") {
		add("get_student_results", nil)
	}
	if containsAny(q, "graduate", "graduation", "final year", "clearance") {
		add("get_graduation_status", nil)
		add("get_student_cgpa", nil)
	}
	if containsAny(q, "registered", "my courses", "enrolled", "carryover", "carry over") {
		add("get_student_courses", nil)
	}
	if containsAny(q, "calendar", "resumption", "exam date", "semester start", "deadline") {
		add("get_academic_calendar", nil)
	}

	codes := extractCourseCodes(query)
	if containsAny(q, "prerequisite", "eligible", "can i take", "can take", "qualify") {
		for _, code := range codes {
			add("check_prerequisites", map[string]string{"course_code": code})
		}
		if len(codes) == 0 {
			// Eligibility without a named course needs the full picture.
			add("get_student_courses", nil)
			add("get_student_results", nil)
		}
	} else {
		for _, code := range codes {
			add("get_course_info", map[string]string{"course_code": code})
		}
	}

	if len(codes) == 0 && containsAny(q, "course", "elective", "borrow") && len(calls) == 0 {
		add("search_courses", map[string]string{"query": strings.TrimSpace(query)})
	}

	if len(calls) == 0 {
		add("get_student_profile", nil)
	}
	return calls
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// extractCourseCodes returns the validated course codes mentioned in the
// query, in order of first appearance.
func extractCourseCodes(query string) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, match := range courseCodeCandidate.FindAllString(query, -1) {
		code, err := validation.SanitizeCourseCode(match)
		if err != nil {
			continue
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}
