// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a credential fails validation.
// Deployment-specific implementations should wrap this error with context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("token expired: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// credential validation.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the account
//
// Optional fields (may be empty):
//   - Email: Account email address
//   - Roles: Role memberships ("student", "staff", "admin")
//   - Metadata: Arbitrary claims from the identity provider
//
// For student accounts, providers are expected to populate the
// "student_id" and "display_name" metadata keys. The orchestrator's
// auth resolver reads those to build the per-turn identity context.
//
// Example:
//
//	info := &AuthInfo{
//	    UserID: "acct-2041",
//	    Email:  "jdoe@university.edu",
//	    Roles:  []string{"student"},
//	    Metadata: NewMetadata().
//	        Set("student_id", "UNI/2021/0415").
//	        Set("display_name", "Jordan Doe"),
//	}
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated account.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the account's email address. May be empty.
	Email string

	// Roles contains role memberships for authorization decisions.
	// Common roles: "student", "staff", "admin"
	Roles []string

	// Metadata holds additional claims from the identity provider.
	//
	// Keys the orchestrator understands:
	//   - "student_id": the registry identifier records are keyed by
	//   - "display_name": name used when addressing the user
	//   - "department", "current_level": profile hints for synthesis
	Metadata Metadata
}

// HasRole checks if the account has a specific role.
//
//	if !authInfo.HasRole("staff") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// StudentID returns the "student_id" metadata claim, or "" if absent.
// An empty return means the account cannot be matched to registry
// records and must not be given access to personal data tools.
func (a *AuthInfo) StudentID() string {
	if a.Metadata == nil {
		return ""
	}
	if id, ok := a.Metadata.GetString("student_id"); ok {
		return id
	}
	return ""
}

// AuthProvider validates credentials and returns account identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// The default NopAuthProvider accepts any token and returns a demo
// student account, which keeps local deployments working without an
// identity provider. Production deployments validate tokens against the
// campus SSO (SAML, OIDC) or a session store.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the account's
	// identity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The credential (JWT, session ID, API key)
	//
	// Returns:
	//   - *AuthInfo: Account identity if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors
	//     for provider failures (network, upstream outage)
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check request, following the
// common (subject, action, resource) pattern.
//
//	req := AuthzRequest{
//	    User:         authInfo,
//	    Action:       "read",
//	    ResourceType: "conversation",
//	    ResourceID:   convID,
//	}
type AuthzRequest struct {
	// User is the authenticated account making the request.
	User *AuthInfo

	// Action is the operation being attempted.
	// Common actions: "create", "read", "update", "delete"
	Action string

	// ResourceType is the category of resource being accessed.
	// Examples: "conversation", "message", "escalation"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	ResourceID string
}

// AuthzProvider checks if an account is authorized to perform an action.
//
// Implementations must be safe for concurrent use. The default
// NopAuthzProvider allows everything, which is appropriate for
// single-tenant local deployments.
type AuthzProvider interface {
	// Authorize returns nil if the action is permitted, or
	// ErrUnauthorized (possibly wrapped) if denied.
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default provider for local deployments.
//
// It always returns a valid demo student account regardless of the
// token, so the service functions without identity infrastructure.
//
// Thread-safe: this implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a demo student account. The token parameter
// is ignored; any value (including empty string) authenticates.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-student",
		Email:  "",
		Roles:  []string{"student"},
		Metadata: NewMetadata().
			Set("student_id", "LOCAL/0001").
			Set("display_name", "Local Student"),
	}, nil
}

// StaticTokenAuthProvider validates tokens against a fixed in-memory
// table. Intended for development and tests; not for production use.
//
//	provider := extensions.NewStaticTokenAuthProvider(map[string]*extensions.AuthInfo{
//	    "tok-abc": {UserID: "acct-1", Roles: []string{"student"}},
//	})
type StaticTokenAuthProvider struct {
	tokens map[string]*AuthInfo
}

// NewStaticTokenAuthProvider creates a provider over the given table.
// The map is used as-is; callers must not mutate it afterwards.
func NewStaticTokenAuthProvider(tokens map[string]*AuthInfo) *StaticTokenAuthProvider {
	return &StaticTokenAuthProvider{tokens: tokens}
}

// Validate looks the token up in the table. Unknown or empty tokens
// return ErrUnauthorized.
func (p *StaticTokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	info, ok := p.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return info, nil
}

// NopAuthzProvider is the default authorization provider. It always
// allows all actions.
//
// Thread-safe: this implementation has no mutable state.
type NopAuthzProvider struct{}

// Authorize always returns nil, allowing all actions.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthProvider  = (*StaticTokenAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
