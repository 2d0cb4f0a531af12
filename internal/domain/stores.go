package domain

import "context"

// ClientStore resuelve clients por su client_id público.
type ClientStore interface {
	// FindClientByID retorna el client o (nil, nil) si no existe.
	// Clients deshabilitados se retornan igual: el validator decide.
	FindClientByID(ctx context.Context, clientID string) (*Client, error)
}

// ResourceStore resuelve identity resources, api scopes y api resources.
type ResourceStore interface {
	FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]IdentityResource, error)
	FindAPIScopesByName(ctx context.Context, scopeNames []string) ([]APIScope, error)
	FindAPIResourcesByScopeName(ctx context.Context, scopeNames []string) ([]APIResource, error)
	FindAPIResourcesByName(ctx context.Context, names []string) ([]APIResource, error)
	// All retorna el catálogo completo (discovery document).
	All(ctx context.Context) (Resources, error)
}

// CORSOriginService decide si un origin puede llamar endpoints con CORS.
type CORSOriginService interface {
	IsOriginAllowed(ctx context.Context, origin string) (bool, error)
}
