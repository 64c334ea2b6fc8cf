// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intent classifies user queries by the kind of information they
// ask for.
//
// The classifier is pure: it inspects only the query text, performs no
// I/O, and is safe for concurrent use. Routing decisions that depend on
// who is asking (authenticated or not) belong to the engine, not here.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is the kind of information a query asks for.
type Intent string

const (
	// PublicInformation covers questions answerable from the public
	// knowledge base (calendars, catalogs, handbooks, policies).
	PublicInformation Intent = "public-information"

	// PersonalInformation covers questions about the caller's own
	// academic records (results, CGPA, registration, graduation).
	PersonalInformation Intent = "personal-information"

	// Ambiguous covers queries the classifier cannot place. The engine
	// treats these as personal for authenticated callers and refuses
	// them for anonymous callers.
	Ambiguous Intent = "ambiguous"
)

// Classifier decides the intent of a query.
//
// Implementations must be pure and safe for concurrent use.
type Classifier interface {
	Classify(query string) Intent
}

// personalIndicators are phrases that mark a query as being about the
// caller's own records.
var personalIndicators = []string{
	"my ",
	"my cgpa",
	"my gpa",
	"my result",
	"my grade",
	"my profile",
	"my course",
	"my transcript",
	"am i ",
	"can i graduate",
	"have i ",
	"do i ",
	"did i ",
	"will i graduate",
	"i registered",
	"i enrolled",
	"i failed",
	"i passed",
	"i scored",
}

// eligibilityIndicators mark questions that need the caller's record to
// answer even when phrased impersonally ("can take", "eligible").
var eligibilityIndicators = []string{
	"can take",
	"can i take",
	"eligible for",
	"eligible to",
	"qualify for",
	"allowed to register",
}

// publicIndicators are phrases strongly tied to the public knowledge base.
var publicIndicators = []string{
	"when does",
	"when is",
	"what is the deadline",
	"academic calendar",
	"semester start",
	"semester begin",
	"resumption",
	"school fees",
	"tuition",
	"hostel",
	"prerequisite",
	"prerequisites",
	"requirements for",
	"course description",
	"credit unit",
	"grading scale",
	"how do i apply",
	"admission",
	"library",
	"matriculation",
	"convocation",
}

// Config tunes the keyword classifier beyond the built-in phrase lists.
//
// Deployments with unusual query patterns can add regex fallbacks that
// run only when no built-in indicator matched.
type Config struct {
	// PersonalPatterns are regexes that classify a query as personal
	// when no indicator phrase matched.
	PersonalPatterns []string

	// PublicPatterns are regexes that classify a query as public when
	// no indicator phrase or personal pattern matched.
	PublicPatterns []string
}

// Validate checks that every configured pattern compiles.
func (c *Config) Validate() error {
	for _, p := range c.PersonalPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid personal pattern %q: %w", p, err)
		}
	}
	for _, p := range c.PublicPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid public pattern %q: %w", p, err)
		}
	}
	return nil
}

// KeywordClassifier classifies queries by scanning for indicator phrases.
//
// Personal indicators win over public ones: "what are the prerequisites
// for my registered courses" is a personal question even though it names
// a public concept.
type KeywordClassifier struct {
	personalPatterns []*regexp.Regexp
	publicPatterns   []*regexp.Regexp
}

// NewKeywordClassifier creates the default classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// NewKeywordClassifierFromConfig creates a classifier with extra regex
// fallbacks on top of the built-in phrase lists.
func NewKeywordClassifierFromConfig(cfg Config) (*KeywordClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &KeywordClassifier{}
	for _, p := range cfg.PersonalPatterns {
		k.personalPatterns = append(k.personalPatterns, regexp.MustCompile(p))
	}
	for _, p := range cfg.PublicPatterns {
		k.publicPatterns = append(k.publicPatterns, regexp.MustCompile(p))
	}
	return k, nil
}

var _ Classifier = (*KeywordClassifier)(nil)

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(query string) Intent {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Ambiguous
	}
	// Pad so leading "my " and trailing "do i" style phrases match.
	padded := " " + q + " "

	for _, ind := range personalIndicators {
		if strings.Contains(padded, " "+ind) {
			return PersonalInformation
		}
	}
	for _, ind := range eligibilityIndicators {
		if strings.Contains(q, ind) {
			return PersonalInformation
		}
	}
	for _, ind := range publicIndicators {
		if strings.Contains(q, ind) {
			return PublicInformation
		}
	}

	for _, re := range k.personalPatterns {
		if re.MatchString(q) {
			return PersonalInformation
		}
	}
	for _, re := range k.publicPatterns {
		if re.MatchString(q) {
			return PublicInformation
		}
	}

	return Ambiguous
}
