// Package domain define las entidades de configuración del protocolo
// (clients, resources, scopes) y los stores que las proveen.
// Son read-only desde la perspectiva del core: el origen puede ser una lista
// en memoria o una base de datos externa.
package domain

import "time"

// Client types.
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Access token flavors.
const (
	AccessTokenJWT       = "jwt"
	AccessTokenReference = "reference"
)

// Refresh token policies.
const (
	RefreshTokenUsageReuse  = "reuse"
	RefreshTokenUsageRotate = "rotate"

	RefreshTokenExpirationAbsolute = "absolute"
	RefreshTokenExpirationSliding  = "sliding"
)

// Secret types admitidos por el client validator.
const (
	SecretTypeSharedSecret = "shared_secret" // comparación en tiempo constante
	SecretTypeArgon2id     = "argon2id"      // PHC hash
)

// Secret es una credencial registrada de un client o API resource.
type Secret struct {
	Type        string     `yaml:"type" json:"type"`
	Value       string     `yaml:"value" json:"value"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Expiration  *time.Time `yaml:"expiration,omitempty" json:"expiration,omitempty"`
}

// Client representa un cliente OAuth2/OIDC registrado.
type Client struct {
	ClientID string `yaml:"client_id" json:"client_id"`
	Name     string `yaml:"name" json:"name"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Type     string `yaml:"type" json:"type"` // "public" | "confidential"

	Secrets []Secret `yaml:"secrets,omitempty" json:"secrets,omitempty"`

	RedirectURIs           []string `yaml:"redirect_uris,omitempty" json:"redirect_uris,omitempty"`
	PostLogoutRedirectURIs []string `yaml:"post_logout_redirect_uris,omitempty" json:"post_logout_redirect_uris,omitempty"`
	AllowedGrantTypes      []string `yaml:"allowed_grant_types,omitempty" json:"allowed_grant_types,omitempty"`
	AllowedScopes          []string `yaml:"allowed_scopes,omitempty" json:"allowed_scopes,omitempty"`
	AllowedCORSOrigins     []string `yaml:"allowed_cors_origins,omitempty" json:"allowed_cors_origins,omitempty"`

	// Consent
	RequireConsent       bool `yaml:"require_consent" json:"require_consent"`
	AllowRememberConsent bool `yaml:"allow_remember_consent" json:"allow_remember_consent"`

	// PKCE
	RequirePKCE        bool `yaml:"require_pkce" json:"require_pkce"`
	AllowPlainTextPKCE bool `yaml:"allow_plain_text_pkce" json:"allow_plain_text_pkce"`

	// Tokens
	AccessTokenType    string `yaml:"access_token_type,omitempty" json:"access_token_type,omitempty"` // "jwt" | "reference"
	AllowOfflineAccess bool   `yaml:"allow_offline_access" json:"allow_offline_access"`

	// Lifetimes en segundos. Cero usa el default del server.
	AuthorizationCodeLifetime int `yaml:"authorization_code_lifetime,omitempty" json:"authorization_code_lifetime,omitempty"`
	AccessTokenLifetime       int `yaml:"access_token_lifetime,omitempty" json:"access_token_lifetime,omitempty"`
	IdentityTokenLifetime     int `yaml:"identity_token_lifetime,omitempty" json:"identity_token_lifetime,omitempty"`
	RefreshTokenLifetime      int `yaml:"refresh_token_lifetime,omitempty" json:"refresh_token_lifetime,omitempty"`
	ConsentLifetime           int `yaml:"consent_lifetime,omitempty" json:"consent_lifetime,omitempty"`
	DeviceCodeLifetime        int `yaml:"device_code_lifetime,omitempty" json:"device_code_lifetime,omitempty"`

	RefreshTokenUsage      string `yaml:"refresh_token_usage,omitempty" json:"refresh_token_usage,omitempty"`           // "reuse" | "rotate"
	RefreshTokenExpiration string `yaml:"refresh_token_expiration,omitempty" json:"refresh_token_expiration,omitempty"` // "absolute" | "sliding"

	// MaxAge fuerza re-login pasados estos segundos desde la autenticación.
	// Cero desactiva el umbral.
	MaxAge int `yaml:"max_age,omitempty" json:"max_age,omitempty"`
}

// AllowsGrantType indica si el grant_type está permitido para el client.
// Lista vacía no permite nada: los grants se declaran explícitamente.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range c.AllowedGrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsScope indica si el scope está en la lista permitida del client.
func (c *Client) AllowsScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasRedirectURI verifica match exacto contra las URIs registradas.
// Sin matching parcial: el redirect target es superficie de ataque.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// HasPostLogoutRedirectURI verifica match exacto para end-session.
func (c *Client) HasPostLogoutRedirectURI(uri string) bool {
	for _, u := range c.PostLogoutRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
