// Package validation implementa las máquinas de validación por endpoint:
// parámetros crudos entran, requests tipados y validados salen. Los validators
// no tienen side effects más allá de lecturas de store; las violaciones de
// protocolo se reportan como resultados tipados, nunca como panics.
package validation

import (
	"net/url"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// Result es el estado común de todo resultado de validación.
type Result struct {
	IsError          bool
	Error            string // código de protocolo (invalid_request, ...)
	ErrorDescription string
}

func ok() Result {
	return Result{}
}

func fail(code, description string) Result {
	return Result{IsError: true, Error: code, ErrorDescription: description}
}

// ValidatedAuthorizeRequest es el agregado del authorize endpoint.
// Inmutable una vez retornado: los validators construyen y sueltan.
type ValidatedAuthorizeRequest struct {
	Client *domain.Client

	ResponseType string
	ResponseMode string
	RedirectURI  string
	State        string
	Nonce        string
	LoginHint    string
	ACRValues    []string

	Prompt string
	// MaxAge en segundos; nil si el request no lo trae.
	MaxAge *int

	RequestedScopes []string
	ParsedScopes    []ParsedScope
	Resources       domain.Resources
	IsOpenID        bool

	CodeChallenge       string
	CodeChallengeMethod string

	Raw url.Values
}

// AuthorizeResult distingue errores de usuario (se renderiza una página,
// porque la redirect_uri no está verificada) de errores de client (viajan
// por redirect a la URI ya validada).
type AuthorizeResult struct {
	Result
	// UserError: no redirigir; el redirect target no es confiable.
	UserError bool
	Request   *ValidatedAuthorizeRequest
}

func authorizeUserError(code, description string) AuthorizeResult {
	return AuthorizeResult{Result: fail(code, description), UserError: true}
}

func authorizeClientError(req *ValidatedAuthorizeRequest, code, description string) AuthorizeResult {
	return AuthorizeResult{Result: fail(code, description), Request: req}
}

// ValidatedTokenRequest es el agregado del token endpoint. Según el
// grant_type queda poblado exactamente uno de los campos de artefacto.
type ValidatedTokenRequest struct {
	Client    *domain.Client
	GrantType string

	Scopes       []string
	ParsedScopes []ParsedScope
	Resources    domain.Resources

	// Subject es nil para client_credentials.
	Subject   *serialization.Subject
	SessionID string

	// AuthorizationCode ya consumido (Take) y verificado contra el request.
	AuthorizationCode *serialization.AuthorizationCode
	// RefreshToken resuelto; RefreshTokenHandle es el handle crudo presentado,
	// necesario para rotación o extensión en el response generator.
	RefreshToken       *serialization.RefreshToken
	RefreshTokenHandle string
	// DeviceCode ya consumido; solo para status authorized.
	DeviceCode *serialization.DeviceCode

	Raw url.Values
}

// TokenResult es el resultado del token endpoint.
type TokenResult struct {
	Result
	Request *ValidatedTokenRequest
}

func tokenError(code, description string) TokenResult {
	return TokenResult{Result: fail(code, description)}
}

// ValidatedDeviceAuthorizationRequest es el agregado del device-authorization
// endpoint: client + scopes, sin usuario todavía.
type ValidatedDeviceAuthorizationRequest struct {
	Client          *domain.Client
	RequestedScopes []string
	ParsedScopes    []ParsedScope
	Resources       domain.Resources
	IsOpenID        bool
}

type DeviceAuthorizationResult struct {
	Result
	Request *ValidatedDeviceAuthorizationRequest
}

// ValidatedEndSessionRequest es el agregado del end-session endpoint.
type ValidatedEndSessionRequest struct {
	// Client resuelto desde el id_token_hint; nil si no vino hint.
	Client                *domain.Client
	SubjectID             string
	SessionID             string
	PostLogoutRedirectURI string
	State                 string
}

type EndSessionResult struct {
	Result
	Request *ValidatedEndSessionRequest
}

// ValidatedIntrospectionRequest cubre introspection y revocation: caller
// autenticado + token presentado. El caller es un client o un API resource,
// nunca ambos.
type ValidatedIntrospectionRequest struct {
	Client *domain.Client
	// Resource es el API resource autenticado cuando el caller es un
	// resource server; nil para callers client.
	Resource      *domain.APIResource
	Token         string
	TokenTypeHint string
}

type IntrospectionResult struct {
	Result
	Request *ValidatedIntrospectionRequest
}
