package domain

// IdentityResource es un scope de identidad (openid, profile, email) que
// mapea a claims del usuario en el id_token / userinfo.
type IdentityResource struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	ClaimTypes  []string `yaml:"claim_types,omitempty" json:"claim_types,omitempty"`
}

// APIScope es un scope de acceso a APIs.
type APIScope struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	ClaimTypes  []string `yaml:"claim_types,omitempty" json:"claim_types,omitempty"`
}

// APIResource agrupa scopes bajo una audiencia (aud de los access tokens).
type APIResource struct {
	Name       string   `yaml:"name" json:"name"`
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Scopes     []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	Secrets    []Secret `yaml:"secrets,omitempty" json:"secrets,omitempty"`
	ClaimTypes []string `yaml:"claim_types,omitempty" json:"claim_types,omitempty"`
}

// Resources agrupa el resultado de una resolución de scopes.
type Resources struct {
	IdentityResources []IdentityResource
	APIScopes         []APIScope
	APIResources      []APIResource
}

// IsEmpty indica si no se resolvió ningún resource.
func (r Resources) IsEmpty() bool {
	return len(r.IdentityResources) == 0 && len(r.APIScopes) == 0 && len(r.APIResources) == 0
}

// FindIdentityResource busca por nombre. Retorna nil si no existe.
func (r Resources) FindIdentityResource(name string) *IdentityResource {
	for i := range r.IdentityResources {
		if r.IdentityResources[i].Name == name {
			return &r.IdentityResources[i]
		}
	}
	return nil
}

// FindAPIScope busca por nombre. Retorna nil si no existe.
func (r Resources) FindAPIScope(name string) *APIScope {
	for i := range r.APIScopes {
		if r.APIScopes[i].Name == name {
			return &r.APIScopes[i]
		}
	}
	return nil
}

// Audiences devuelve los nombres de los API resources resueltos.
func (r Resources) Audiences() []string {
	out := make([]string, 0, len(r.APIResources))
	for _, ar := range r.APIResources {
		out = append(out, ar.Name)
	}
	return out
}
