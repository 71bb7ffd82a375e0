package services

import (
	"fmt"
	"sort"

	"github.com/lborres/starterp/core"
)

// Operation IDs shared between endpoint definitions and adapters.
const (
	OpSignUpEmail    = "signUpEmail"
	OpSignInEmail    = "signInEmail"
	OpSignInSocial   = "signInSocial"
	OpOAuthCallback  = "oauthCallback"
	OpSignOut        = "signOut"
	OpGetSession     = "getSession"
	OpIssueToken     = "issueToken"
	OpMe             = "me"
	OpListAdmins     = "listAdminUsers"
	OpSetUserRole    = "setUserRole"
	OpRemoveUserRole = "removeUserRole"
	OpRoleHistory    = "userRoleHistory"
)

// BaseEndpoints returns the authentication routes, relative to the auth
// base path. Adapters bind handlers by OperationID.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/sign-up/email",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignUpEmail,
				Description: "Sign up a user using email and password",
				RateLimited: true,
			},
		},
		{
			Path:   "/sign-in/email",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignInEmail,
				Description: "Sign in a user using email and password",
				RateLimited: true,
			},
		},
		{
			Path:   "/sign-in/social",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignInSocial,
				Description: "Start a social sign-in and return the provider URL",
			},
		},
		{
			Path:   "/callback/:provider",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpOAuthCallback,
				Description: "Complete a social sign-in",
			},
		},
		{
			Path:   "/sign-out",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignOut,
				Description: "Sign out the current user and invalidate the session",
			},
		},
		{
			Path:   "/get-session",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpGetSession,
				Description: "Get the current user's session data",
			},
		},
		{
			Path:   "/token",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpIssueToken,
				Description: "Issue a bearer token for the authenticated user",
				Access:      core.Authenticated,
			},
		},
	}
}

// AppEndpoints returns the application routes that sit behind the
// authentication middleware, relative to /api.
func AppEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/me",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpMe,
				Description: "Get the authenticated identity with role and tier",
				Access:      core.Authenticated,
			},
		},
		{
			Path:   "/admin/users",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpListAdmins,
				Description: "List administrators",
				Access:      core.AdminOnly,
			},
		},
		{
			Path:   "/admin/users/:id/role",
			Method: "PUT",
			Metadata: core.EndpointMetadata{
				OperationID: OpSetUserRole,
				Description: "Assign a role to a user",
				Access:      core.AdminOnly,
			},
		},
		{
			Path:   "/admin/users/:id/role",
			Method: "DELETE",
			Metadata: core.EndpointMetadata{
				OperationID: OpRemoveUserRole,
				Description: "Reset a user to the default role",
				Access:      core.AdminOnly,
			},
		},
		{
			Path:   "/admin/users/:id/events",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpRoleHistory,
				Description: "List role events recorded for a user",
				Access:      core.AdminOnly,
			},
		},
	}
}

// EndpointRegistry holds endpoints keyed by "METHOD:PATH" and rejects
// duplicates.
type EndpointRegistry struct {
	endpoints map[string]*core.Endpoint
}

// NewEndpointRegistry creates a registry with the base endpoints registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{endpoints: make(map[string]*core.Endpoint)}
	for _, ep := range BaseEndpoints() {
		ep := ep
		reg.endpoints[endpointKey(&ep)] = &ep
	}
	return reg
}

// NewAppRegistry creates a registry holding the application endpoints.
func NewAppRegistry() (*EndpointRegistry, error) {
	reg := &EndpointRegistry{endpoints: make(map[string]*core.Endpoint)}
	if err := reg.RegisterPlugin(AppEndpoints()); err != nil {
		return nil, err
	}
	return reg, nil
}

func endpointKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

// RegisterPlugin adds endpoints atomically: if any of them conflicts with a
// registered endpoint or with another in the batch, none are added.
func (r *EndpointRegistry) RegisterPlugin(endpoints []core.Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for i := range endpoints {
		key := endpointKey(&endpoints[i])
		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("plugin endpoint conflict: %s %s already registered", endpoints[i].Method, endpoints[i].Path)
		}
		if seen[key] {
			return fmt.Errorf("plugin contains duplicate endpoint: %s %s", endpoints[i].Method, endpoints[i].Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		ep := endpoints[i]
		r.endpoints[endpointKey(&ep)] = &ep
	}
	return nil
}

// Endpoints returns all registered endpoints ordered by path then method.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Path != result[j].Path {
			return result[i].Path < result[j].Path
		}
		return result[i].Method < result[j].Method
	})
	return result
}
