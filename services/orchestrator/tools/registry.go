// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools defines the fixed catalog of student-record tools and the
// invoker that executes them against the records service.
//
// The catalog is closed: tools are declared in the embedded registry.yaml
// and cannot be added at runtime. Every tool operates on the resolved
// subject's records; invoking any tool without a subject is an error,
// which is the mechanism that keeps anonymous callers out of personal
// data.
package tools

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryYAML []byte

// ArgSpec describes one argument a tool accepts.
type ArgSpec struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
}

// Tool is one entry in the catalog.
//
// Path is a template relative to the records service base URL. The
// {subject_id} placeholder is always present; additional placeholders
// are filled from call arguments, and non-placeholder arguments become
// query parameters.
type Tool struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Method      string    `yaml:"method"`
	Path        string    `yaml:"path"`
	Args        []ArgSpec `yaml:"args"`
}

// arg returns the declaration for a named argument, if present.
func (t *Tool) arg(name string) (ArgSpec, bool) {
	for _, a := range t.Args {
		if a.Name == name {
			return a, true
		}
	}
	return ArgSpec{}, false
}

// ValidateCall checks that the given arguments satisfy the tool's spec.
func (t *Tool) ValidateCall(args map[string]string) error {
	for _, spec := range t.Args {
		if spec.Required && strings.TrimSpace(args[spec.Name]) == "" {
			return fmt.Errorf("tool %s: missing required argument %q", t.Name, spec.Name)
		}
	}
	for name := range args {
		if _, ok := t.arg(name); !ok {
			return fmt.Errorf("tool %s: unknown argument %q", t.Name, name)
		}
	}
	return nil
}

// Registry is the loaded tool catalog.
//
// # Thread Safety
//
// Read-only after Load; safe for concurrent use.
type Registry struct {
	byName map[string]*Tool
}

// registryFile mirrors the YAML document layout.
type registryFile struct {
	Tools []*Tool `yaml:"tools"`
}

// Load parses the embedded catalog. It fails on duplicate names,
// missing paths, or paths that do not carry the subject placeholder.
func Load() (*Registry, error) {
	return loadFrom(registryYAML)
}

func loadFrom(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tool registry: %w", err)
	}
	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("tool registry is empty")
	}

	byName := make(map[string]*Tool, len(file.Tools))
	for _, t := range file.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool registry: tool with empty name")
		}
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("tool registry: duplicate tool %q", t.Name)
		}
		if t.Path == "" {
			return nil, fmt.Errorf("tool registry: tool %q has no path", t.Name)
		}
		if !strings.Contains(t.Path, "{subject_id}") {
			return nil, fmt.Errorf("tool registry: tool %q path is not subject-scoped", t.Name)
		}
		if t.Method == "" {
			t.Method = "GET"
		}
		byName[t.Name] = t
	}
	return &Registry{byName: byName}, nil
}

// Get returns the named tool, or ErrUnknownTool.
func (r *Registry) Get(name string) (*Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Names returns all tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the catalog size.
func (r *Registry) Len() int {
	return len(r.byName)
}
