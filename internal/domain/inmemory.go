package domain

import (
	"context"
	"strings"
)

// InMemoryClientStore sirve clients desde una lista fija (config YAML o tests).
type InMemoryClientStore struct {
	clients map[string]*Client
}

// NewInMemoryClientStore indexa los clients por client_id.
func NewInMemoryClientStore(clients []Client) *InMemoryClientStore {
	m := make(map[string]*Client, len(clients))
	for i := range clients {
		c := clients[i]
		m[c.ClientID] = &c
	}
	return &InMemoryClientStore{clients: m}
}

func (s *InMemoryClientStore) FindClientByID(ctx context.Context, clientID string) (*Client, error) {
	c, ok := s.clients[clientID]
	if !ok {
		return nil, nil
	}
	return c, nil
}

// InMemoryResourceStore sirve resources desde listas fijas.
type InMemoryResourceStore struct {
	identity []IdentityResource
	scopes   []APIScope
	apis     []APIResource
}

func NewInMemoryResourceStore(identity []IdentityResource, scopes []APIScope, apis []APIResource) *InMemoryResourceStore {
	return &InMemoryResourceStore{identity: identity, scopes: scopes, apis: apis}
}

func (s *InMemoryResourceStore) FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]IdentityResource, error) {
	var out []IdentityResource
	for _, ir := range s.identity {
		if containsName(scopeNames, ir.Name) {
			out = append(out, ir)
		}
	}
	return out, nil
}

func (s *InMemoryResourceStore) FindAPIScopesByName(ctx context.Context, scopeNames []string) ([]APIScope, error) {
	var out []APIScope
	for _, sc := range s.scopes {
		if containsName(scopeNames, sc.Name) {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *InMemoryResourceStore) FindAPIResourcesByScopeName(ctx context.Context, scopeNames []string) ([]APIResource, error) {
	var out []APIResource
	for _, api := range s.apis {
		for _, sc := range api.Scopes {
			if containsName(scopeNames, sc) {
				out = append(out, api)
				break
			}
		}
	}
	return out, nil
}

func (s *InMemoryResourceStore) FindAPIResourcesByName(ctx context.Context, names []string) ([]APIResource, error) {
	var out []APIResource
	for _, api := range s.apis {
		if containsName(names, api.Name) {
			out = append(out, api)
		}
	}
	return out, nil
}

func (s *InMemoryResourceStore) All(ctx context.Context) (Resources, error) {
	return Resources{
		IdentityResources: append([]IdentityResource(nil), s.identity...),
		APIScopes:         append([]APIScope(nil), s.scopes...),
		APIResources:      append([]APIResource(nil), s.apis...),
	}, nil
}

// ClientCORSOriginService permite origins registrados en cualquier client habilitado.
type ClientCORSOriginService struct {
	clients []Client
}

func NewClientCORSOriginService(clients []Client) *ClientCORSOriginService {
	return &ClientCORSOriginService{clients: clients}
}

func (s *ClientCORSOriginService) IsOriginAllowed(ctx context.Context, origin string) (bool, error) {
	if origin == "" {
		return false, nil
	}
	for i := range s.clients {
		c := &s.clients[i]
		if !c.Enabled {
			continue
		}
		for _, o := range c.AllowedCORSOrigins {
			if strings.EqualFold(o, origin) {
				return true, nil
			}
		}
	}
	return false, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
