// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// records-service queries or search filters. Using these validators prevents
// injection through tool arguments (query injection, filter injection).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// courseCodePattern matches valid course codes.
// Allows: a 2-4 letter department prefix followed by a 3-4 digit number,
// with an optional single letter suffix (lab/honors variants like CSC301L).
var courseCodePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{3,4}[A-Z]?$`)

// ValidateCourseCode validates a course code before it is used as a tool
// argument or search filter.
//
// Valid codes:
//   - 2-4 uppercase department letters (CSC, MTH, GST, ACCT)
//   - 3-4 digit course number (301, 1101)
//   - Optional single letter variant suffix (CSC301L)
//
// Returns an error if the code is invalid.
//
// Example:
//
//	if err := validation.ValidateCourseCode(code); err != nil {
//	    return nil, fmt.Errorf("invalid course code: %w", err)
//	}
//	// Safe to use in a records query
func ValidateCourseCode(code string) error {
	if code == "" {
		return fmt.Errorf("course code cannot be empty")
	}

	if !courseCodePattern.MatchString(code) {
		return fmt.Errorf("invalid course code format: %q (expected department prefix plus course number, e.g. CSC301)", code)
	}

	return nil
}

// ValidateCourseCodes validates multiple course codes.
// Returns an error listing all invalid codes if any fail validation.
func ValidateCourseCodes(codes []string) error {
	var invalid []string
	for _, c := range codes {
		if err := ValidateCourseCode(c); err != nil {
			invalid = append(invalid, c)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid course codes: %v", invalid)
	}
	return nil
}

// SanitizeCourseCode normalizes and validates a course code.
// Returns the uppercase code with internal spaces removed if valid.
//
// Use this when accepting codes typed by users ("csc 301" -> "CSC301"):
//
//	safeCode, err := validation.SanitizeCourseCode(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeCourseCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	normalized = strings.ReplaceAll(normalized, " ", "")
	if err := ValidateCourseCode(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
