// Package oidc contiene las constantes del protocolo OAuth2/OIDC.
// Los nombres de parámetros y códigos de error son parte del contrato wire.
package oidc

// Grant types.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeImplicit          = "implicit"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// Response types for the authorize endpoint. Los compuestos se normalizan
// ordenando sus componentes antes de comparar.
const (
	ResponseTypeCode        = "code"
	ResponseTypeToken       = "token"
	ResponseTypeIDToken     = "id_token"
	ResponseTypeCodeIDToken = "code id_token"
)

// Response modes.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Prompt values.
const (
	PromptNone    = "none"
	PromptLogin   = "login"
	PromptConsent = "consent"
)

// Code challenge methods (PKCE).
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

// Token type hints (revocation / introspection).
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// TokenTypeBearer is the only token_type this server issues.
const TokenTypeBearer = "Bearer"

// ScopeOpenID gates id_token issuance; ScopeOfflineAccess gates refresh tokens.
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
)

// Request parameter names (authorize endpoint).
const (
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamResponseType        = "response_type"
	ParamResponseMode        = "response_mode"
	ParamRedirectURI         = "redirect_uri"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamPrompt              = "prompt"
	ParamMaxAge              = "max_age"
	ParamACRValues           = "acr_values"
	ParamLoginHint           = "login_hint"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
)

// Request parameter names (token endpoint).
const (
	ParamGrantType           = "grant_type"
	ParamCode                = "code"
	ParamCodeVerifier        = "code_verifier"
	ParamRefreshToken        = "refresh_token"
	ParamUsername            = "username"
	ParamPassword            = "password"
	ParamDeviceCode          = "device_code"
	ParamClientAssertion     = "client_assertion"
	ParamClientAssertionType = "client_assertion_type"
)

// Response parameter names (authorize endpoint).
const (
	ParamIDToken = "id_token"
)

// ClientAssertionTypeJWTBearer es el único client_assertion_type soportado
// (RFC 7523 §2.2).
const ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Request parameter names (end-session / revocation / introspection).
const (
	ParamIDTokenHint           = "id_token_hint"
	ParamPostLogoutRedirectURI = "post_logout_redirect_uri"
	ParamSID                   = "sid"
	ParamToken                 = "token"
	ParamTokenTypeHint         = "token_type_hint"
)

// Parameter length limits. Requests exceeding these are rejected as
// invalid_request before any store lookup.
const (
	MaxClientIDLength    = 100
	MaxScopeLength       = 300
	MaxRedirectURILength = 400
	MaxStateLength       = 2000
	MaxNonceLength       = 300
	MaxCodeLength        = 512
	MaxRefreshTokenLen   = 512
	MaxSecretLength      = 1000
	MaxAssertionLength   = 4096
)
