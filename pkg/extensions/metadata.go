// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

// =============================================================================
// Metadata Type
// =============================================================================

// Metadata stores arbitrary key-value pairs for identity claims and
// audit context.
//
// Using a defined type rather than map[string]any provides clearer
// intent in signatures and room for type-safe accessors.
//
// # Common Keys
//
//   - "student_id": registry identifier for student accounts
//   - "display_name": name used when addressing the user
//   - "conversation_id": conversation correlation ID
//   - "duration_ms": operation duration
//   - "error": error message when an outcome is "failure"
//
// # Thread Safety
//
// Metadata is NOT thread-safe. Do not share a single instance across
// goroutines without external synchronization.
//
// Example:
//
//	meta := extensions.NewMetadata().
//	    Set("student_id", "UNI/2021/0415").
//	    Set("display_name", "Jordan Doe")
type Metadata map[string]any

// NewMetadata creates an empty Metadata instance.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Set adds or updates a key-value pair and returns the Metadata for
// chaining.
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get retrieves a value by key. The bool reports whether the key exists.
func (m Metadata) Get(key string) (any, bool) {
	value, ok := m[key]
	return value, ok
}

// GetString retrieves a string value by key. Returns "" and false if
// the key is absent or the value is not a string.
func (m Metadata) GetString(key string) (string, bool) {
	value, ok := m[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// GetInt retrieves an int value by key. Returns 0 and false if the key
// is absent or the value is not an int.
func (m Metadata) GetInt(key string) (int, bool) {
	value, ok := m[key]
	if !ok {
		return 0, false
	}
	i, ok := value.(int)
	return i, ok
}

// GetBool retrieves a bool value by key. Returns false and false if the
// key is absent or the value is not a bool.
func (m Metadata) GetBool(key string) (bool, bool) {
	value, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// Merge copies all entries from other into m, overwriting existing keys,
// and returns m for chaining.
func (m Metadata) Merge(other Metadata) Metadata {
	for k, v := range other {
		m[k] = v
	}
	return m
}
