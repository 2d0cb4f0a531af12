package validation

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/rate"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// UserService es el colaborador externo que valida credenciales de usuario
// (password grant) y vigencia de cuentas. El host lo implementa; el core solo
// consume el contrato.
type UserService interface {
	// ValidateCredentials retorna el subject o (nil, nil) si las credenciales
	// no son válidas.
	ValidateCredentials(ctx context.Context, username, password string) (*serialization.Subject, error)
	// IsActive indica si la cuenta sigue habilitada.
	IsActive(ctx context.Context, subjectID string) (bool, error)
}

// ExtensionGrantValidator valida un grant type custom. El resultado se vuelve
// el subject emitido, o un invalid_grant con descripción propia.
type ExtensionGrantValidator interface {
	GrantType() string
	Validate(ctx context.Context, req *ValidatedTokenRequest) (*serialization.Subject, Result, error)
}

// ExtensionGrants es el registro de validators custom, keyed por grant_type.
// Se arma una vez al arranque.
type ExtensionGrants struct {
	byType map[string]ExtensionGrantValidator
}

func NewExtensionGrants(validators ...ExtensionGrantValidator) *ExtensionGrants {
	r := &ExtensionGrants{byType: make(map[string]ExtensionGrantValidator, len(validators))}
	for _, v := range validators {
		r.byType[v.GrantType()] = v
	}
	return r
}

func (r *ExtensionGrants) Find(grantType string) ExtensionGrantValidator {
	if r == nil {
		return nil
	}
	return r.byType[grantType]
}

// TokenValidator implementa el dispatch por grant_type del token endpoint.
type TokenValidator struct {
	Clients    *ClientValidator
	Scopes     *ScopeValidator
	Codes      *grants.AuthorizationCodeStore
	Refresh    *grants.RefreshTokenStore
	Devices    *grants.DeviceCodeStore
	Users      UserService
	Extensions *ExtensionGrants
	// Poll limita la frecuencia de polling del device flow; violación → slow_down.
	Poll rate.Limiter
}

func (v *TokenValidator) Validate(ctx context.Context, r *http.Request, form url.Values) (TokenResult, error) {
	client, res, err := v.Clients.Validate(ctx, r, form)
	if err != nil {
		return TokenResult{}, err
	}
	if res.IsError {
		return TokenResult{Result: res}, nil
	}

	grantType := form.Get(oidc.ParamGrantType)
	if grantType == "" {
		return tokenError(oidc.ErrorInvalidRequest, "grant_type is required"), nil
	}

	req := &ValidatedTokenRequest{Client: client, GrantType: grantType, Raw: form}

	switch grantType {
	case oidc.GrantTypeAuthorizationCode:
		return v.validateAuthorizationCode(ctx, req, form)
	case oidc.GrantTypeRefreshToken:
		return v.validateRefreshToken(ctx, req, form)
	case oidc.GrantTypeClientCredentials:
		return v.validateClientCredentials(ctx, req, form)
	case oidc.GrantTypePassword:
		return v.validatePassword(ctx, req, form)
	case oidc.GrantTypeDeviceCode:
		return v.validateDeviceCode(ctx, req, form)
	default:
		ext := v.Extensions.Find(grantType)
		if ext == nil {
			return tokenError(oidc.ErrorUnsupportedGrantType, "unsupported grant_type"), nil
		}
		return v.validateExtension(ctx, ext, req)
	}
}

func (v *TokenValidator) validateAuthorizationCode(ctx context.Context, req *ValidatedTokenRequest, form url.Values) (TokenResult, error) {
	if !req.Client.AllowsGrantType(oidc.GrantTypeAuthorizationCode) {
		return tokenError(oidc.ErrorUnauthorizedClient, "grant type not allowed for client"), nil
	}
	rawCode := form.Get(oidc.ParamCode)
	if rawCode == "" || len(rawCode) > oidc.MaxCodeLength {
		return tokenError(oidc.ErrorInvalidRequest, "code is missing or too long"), nil
	}

	// Take atómico: dos canjes concurrentes dejan un solo ganador.
	code, err := v.Codes.Redeem(ctx, rawCode)
	if err != nil {
		return TokenResult{}, err
	}
	if code == nil {
		return tokenError(oidc.ErrorInvalidGrant, "invalid authorization code"), nil
	}

	// Anti-fixation: el código vale solo para el client que lo pidió y la
	// misma redirect_uri del authorize request.
	if code.ClientID != req.Client.ClientID {
		logger.From(ctx).Warn("authorization code presented by wrong client",
			logger.ClientID(req.Client.ClientID))
		return tokenError(oidc.ErrorInvalidGrant, "invalid authorization code"), nil
	}
	if form.Get(oidc.ParamRedirectURI) != code.RedirectURI {
		return tokenError(oidc.ErrorInvalidGrant, "redirect_uri mismatch"), nil
	}

	if res := verifyPKCE(code, form.Get(oidc.ParamCodeVerifier)); res.IsError {
		return TokenResult{Result: res}, nil
	}

	scopeRes, err := v.Scopes.Validate(ctx, req.Client, code.RequestedScopes)
	if err != nil {
		return TokenResult{}, err
	}
	if scopeRes.IsError {
		return TokenResult{Result: scopeRes.Result}, nil
	}

	req.AuthorizationCode = code
	req.Subject = &code.Subject
	req.SessionID = code.SessionID
	req.Scopes = code.RequestedScopes
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	return TokenResult{Request: req}, nil
}

// verifyPKCE compara el verifier presentado contra el challenge guardado en
// el código. Comparación en tiempo constante en ambos métodos.
func verifyPKCE(code *serialization.AuthorizationCode, verifier string) Result {
	if code.CodeChallenge == "" {
		if verifier != "" {
			return fail(oidc.ErrorInvalidGrant, "unexpected code_verifier")
		}
		return ok()
	}
	if verifier == "" || len(verifier) < 43 || len(verifier) > 128 {
		return fail(oidc.ErrorInvalidGrant, "code_verifier is missing or malformed")
	}
	var derived string
	switch code.CodeChallengeMethod {
	case oidc.CodeChallengeMethodPlain:
		derived = verifier
	default:
		derived = tokens.SHA256Base64URL(verifier)
	}
	if subtle.ConstantTimeCompare([]byte(derived), []byte(code.CodeChallenge)) != 1 {
		return fail(oidc.ErrorInvalidGrant, "code_verifier mismatch")
	}
	return ok()
}

func (v *TokenValidator) validateRefreshToken(ctx context.Context, req *ValidatedTokenRequest, form url.Values) (TokenResult, error) {
	if !req.Client.AllowsGrantType(oidc.GrantTypeRefreshToken) && !req.Client.AllowOfflineAccess {
		return tokenError(oidc.ErrorUnauthorizedClient, "grant type not allowed for client"), nil
	}
	handle := form.Get(oidc.ParamRefreshToken)
	if handle == "" || len(handle) > oidc.MaxRefreshTokenLen {
		return tokenError(oidc.ErrorInvalidRequest, "refresh_token is missing or too long"), nil
	}

	rt, err := v.Refresh.Get(ctx, handle)
	if err != nil {
		return TokenResult{}, err
	}
	if rt == nil {
		return tokenError(oidc.ErrorInvalidGrant, "invalid refresh token"), nil
	}
	if rt.ClientID != req.Client.ClientID {
		logger.From(ctx).Warn("refresh token presented by wrong client",
			logger.ClientID(req.Client.ClientID))
		return tokenError(oidc.ErrorInvalidGrant, "invalid refresh token"), nil
	}
	if v.Users != nil {
		active, err := v.Users.IsActive(ctx, rt.Subject.SubjectID)
		if err != nil {
			return TokenResult{}, err
		}
		if !active {
			return tokenError(oidc.ErrorInvalidGrant, "user account is no longer active"), nil
		}
	}

	// El request puede angostar los scopes originales, nunca ampliarlos.
	scopes := rt.Scopes
	if rawScope := form.Get(oidc.ParamScope); rawScope != "" {
		requested := strings.Fields(rawScope)
		if !subset(requested, rt.Scopes) {
			return tokenError(oidc.ErrorInvalidScope, "requested scope exceeds original grant"), nil
		}
		scopes = requested
	}
	scopeRes, err := v.Scopes.Validate(ctx, req.Client, scopes)
	if err != nil {
		return TokenResult{}, err
	}
	if scopeRes.IsError {
		return TokenResult{Result: scopeRes.Result}, nil
	}

	req.RefreshToken = rt
	req.RefreshTokenHandle = handle
	req.Subject = &rt.Subject
	req.SessionID = rt.SessionID
	req.Scopes = scopes
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	return TokenResult{Request: req}, nil
}

func (v *TokenValidator) validateClientCredentials(ctx context.Context, req *ValidatedTokenRequest, form url.Values) (TokenResult, error) {
	if !req.Client.AllowsGrantType(oidc.GrantTypeClientCredentials) {
		return tokenError(oidc.ErrorUnauthorizedClient, "grant type not allowed for client"), nil
	}
	if req.Client.Type != domain.ClientTypeConfidential {
		return tokenError(oidc.ErrorUnauthorizedClient, "client credentials requires a confidential client"), nil
	}

	requested := strings.Fields(form.Get(oidc.ParamScope))
	for _, s := range requested {
		// Sin usuario no hay identidad que emitir ni sesión que refrescar.
		if s == oidc.ScopeOpenID || s == oidc.ScopeOfflineAccess {
			return tokenError(oidc.ErrorInvalidScope, "scope not valid for client credentials: "+s), nil
		}
	}
	scopeRes, err := v.Scopes.Validate(ctx, req.Client, requested)
	if err != nil {
		return TokenResult{}, err
	}
	if scopeRes.IsError {
		return TokenResult{Result: scopeRes.Result}, nil
	}

	req.Scopes = requested
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	return TokenResult{Request: req}, nil
}

func (v *TokenValidator) validatePassword(ctx context.Context, req *ValidatedTokenRequest, form url.Values) (TokenResult, error) {
	if !req.Client.AllowsGrantType(oidc.GrantTypePassword) {
		return tokenError(oidc.ErrorUnauthorizedClient, "grant type not allowed for client"), nil
	}
	if v.Users == nil {
		return tokenError(oidc.ErrorUnsupportedGrantType, "password grant is not configured"), nil
	}
	username := form.Get(oidc.ParamUsername)
	pass := form.Get(oidc.ParamPassword)
	if username == "" || pass == "" {
		return tokenError(oidc.ErrorInvalidRequest, "username and password are required"), nil
	}

	subject, err := v.Users.ValidateCredentials(ctx, username, pass)
	if err != nil {
		return TokenResult{}, err
	}
	if subject == nil {
		logger.From(ctx).Warn("password grant with invalid credentials",
			logger.ClientID(req.Client.ClientID))
		return tokenError(oidc.ErrorInvalidGrant, "invalid username or password"), nil
	}

	scopeRes, err := v.Scopes.Validate(ctx, req.Client, strings.Fields(form.Get(oidc.ParamScope)))
	if err != nil {
		return TokenResult{}, err
	}
	if scopeRes.IsError {
		return TokenResult{Result: scopeRes.Result}, nil
	}

	req.Subject = subject
	req.Scopes = strings.Fields(form.Get(oidc.ParamScope))
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	return TokenResult{Request: req}, nil
}

func (v *TokenValidator) validateDeviceCode(ctx context.Context, req *ValidatedTokenRequest, form url.Values) (TokenResult, error) {
	if !req.Client.AllowsGrantType(oidc.GrantTypeDeviceCode) {
		return tokenError(oidc.ErrorUnauthorizedClient, "grant type not allowed for client"), nil
	}
	rawDeviceCode := form.Get(oidc.ParamDeviceCode)
	if rawDeviceCode == "" || len(rawDeviceCode) > oidc.MaxCodeLength {
		return tokenError(oidc.ErrorInvalidRequest, "device_code is missing or too long"), nil
	}

	if v.Poll != nil {
		pollRes, err := v.Poll.Allow(ctx, tokens.SHA256Base64URL(rawDeviceCode))
		if err != nil {
			return TokenResult{}, err
		}
		if !pollRes.Allowed {
			return tokenError(oidc.ErrorSlowDown, "polling too frequently"), nil
		}
	}

	dc, expired, err := v.Devices.State(ctx, rawDeviceCode)
	if err != nil {
		return TokenResult{}, err
	}
	if dc == nil {
		return tokenError(oidc.ErrorInvalidGrant, "invalid device code"), nil
	}
	if expired {
		return tokenError(oidc.ErrorExpiredToken, "device code expired"), nil
	}
	if dc.ClientID != req.Client.ClientID {
		return tokenError(oidc.ErrorInvalidGrant, "invalid device code"), nil
	}

	switch dc.Status {
	case serialization.DeviceStatusPending:
		return tokenError(oidc.ErrorAuthorizationPending, "authorization request is still pending"), nil
	case serialization.DeviceStatusDenied:
		// Terminal: se limpia el flujo para que el próximo poll sea invalid_grant.
		if err := v.Devices.Remove(ctx, rawDeviceCode); err != nil {
			logger.From(ctx).Warn("device flow cleanup failed", logger.Err(err))
		}
		return tokenError(oidc.ErrorAccessDenied, "the user denied the request"), nil
	case serialization.DeviceStatusAuthorized:
	default:
		return tokenError(oidc.ErrorInvalidGrant, "invalid device code"), nil
	}

	// Take atómico: el segundo canje del mismo device_code pierde.
	redeemed, err := v.Devices.Redeem(ctx, rawDeviceCode)
	if err != nil {
		return TokenResult{}, err
	}
	if redeemed == nil || redeemed.Subject == nil {
		return tokenError(oidc.ErrorInvalidGrant, "invalid device code"), nil
	}

	scopeRes, err := v.Scopes.Validate(ctx, req.Client, redeemed.AuthorizedScopes)
	if err != nil {
		return TokenResult{}, err
	}
	if scopeRes.IsError {
		return TokenResult{Result: scopeRes.Result}, nil
	}

	req.DeviceCode = redeemed
	req.Subject = redeemed.Subject
	req.SessionID = redeemed.SessionID
	req.Scopes = redeemed.AuthorizedScopes
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	return TokenResult{Request: req}, nil
}

func (v *TokenValidator) validateExtension(ctx context.Context, ext ExtensionGrantValidator, req *ValidatedTokenRequest) (TokenResult, error) {
	if !req.Client.AllowsGrantType(req.GrantType) {
		return tokenError(oidc.ErrorUnauthorizedClient, "grant type not allowed for client"), nil
	}
	subject, res, err := ext.Validate(ctx, req)
	if err != nil {
		return TokenResult{}, err
	}
	if res.IsError {
		return TokenResult{Result: res}, nil
	}

	scopeRes, err := v.Scopes.Validate(ctx, req.Client, strings.Fields(req.Raw.Get(oidc.ParamScope)))
	if err != nil {
		return TokenResult{}, err
	}
	if scopeRes.IsError {
		return TokenResult{Result: scopeRes.Result}, nil
	}

	req.Subject = subject
	req.Scopes = strings.Fields(req.Raw.Get(oidc.ParamScope))
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	return TokenResult{Request: req}, nil
}

func subset(requested, granted []string) bool {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	for _, s := range requested {
		if _, found := have[s]; !found {
			return false
		}
	}
	return true
}
