// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for deployment-specific
// functionality.
//
// VarsityAssist ships as a fully functional local service that works
// without external identity or compliance infrastructure. Campus
// deployments add capabilities by providing concrete implementations of
// these interfaces and injecting them via ServiceOptions; the defaults
// are no-ops.
//
// # Extension Categories
//
//   - auth.go: Credential validation and authorization (AuthProvider,
//     AuthzProvider)
//   - audit.go: Compliance audit logging (AuditLogger)
//
// # Usage
//
// Local (no-op defaults):
//
//	opts := extensions.DefaultOptions()
//	svc, err := orchestrator.New(cfg, &opts)
//
// Campus deployment:
//
//	opts := extensions.ServiceOptions{
//	    AuthProvider: sso.NewOIDCProvider(cfg),
//	    AuditLogger:  siem.NewAuditLogger(cfg),
//	}
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors. All fields are optional; nil
// values are replaced with no-op defaults by DefaultOptions() or when
// services check for nil.
type ServiceOptions struct {
	// AuthProvider validates credentials.
	// Default: NopAuthProvider (always returns the demo student)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization permissions.
	// Default: NopAuthzProvider (always allows all actions)
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger
}

// DefaultOptions returns ServiceOptions with no-op defaults.
// This is the configuration used by local deployments.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
