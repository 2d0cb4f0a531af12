package validation

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// AuthorizeValidator implementa el pipeline del authorize endpoint. El orden
// importa: hasta validar client_id + redirect_uri los errores son de usuario
// (página de error, nunca redirect a un target sin verificar); después de eso
// los errores viajan por redirect a la URI ya validada.
type AuthorizeValidator struct {
	Clients domain.ClientStore
	Scopes  *ScopeValidator
}

func NewAuthorizeValidator(clients domain.ClientStore, scopes *ScopeValidator) *AuthorizeValidator {
	return &AuthorizeValidator{Clients: clients, Scopes: scopes}
}

func (v *AuthorizeValidator) Validate(ctx context.Context, params url.Values) (AuthorizeResult, error) {
	// 1. Client.
	clientID := params.Get(oidc.ParamClientID)
	if clientID == "" || len(clientID) > oidc.MaxClientIDLength {
		return authorizeUserError(oidc.ErrorInvalidRequest, "client_id is missing or too long"), nil
	}
	client, err := v.Clients.FindClientByID(ctx, clientID)
	if err != nil {
		return AuthorizeResult{}, err
	}
	if client == nil || !client.Enabled {
		logger.From(ctx).Warn("authorize request for unknown client", logger.ClientID(clientID))
		return authorizeUserError(oidc.ErrorInvalidRequest, "unknown client"), nil
	}

	// 2. redirect_uri: match exacto contra las URIs registradas. Falla acá
	// es error de usuario: el target no es confiable.
	redirectURI := params.Get(oidc.ParamRedirectURI)
	if redirectURI == "" || len(redirectURI) > oidc.MaxRedirectURILength {
		return authorizeUserError(oidc.ErrorInvalidRequest, "redirect_uri is missing or too long"), nil
	}
	if !client.HasRedirectURI(redirectURI) {
		logger.From(ctx).Warn("authorize request with unregistered redirect_uri",
			logger.ClientID(clientID), logger.String("redirect_uri", redirectURI))
		return authorizeUserError(oidc.ErrorInvalidRequest, "invalid redirect_uri"), nil
	}

	req := &ValidatedAuthorizeRequest{
		Client:      client,
		RedirectURI: redirectURI,
		State:       params.Get(oidc.ParamState),
		Raw:         params,
	}
	if len(req.State) > oidc.MaxStateLength {
		return authorizeUserError(oidc.ErrorInvalidRequest, "state too long"), nil
	}

	// 3. Parámetros de protocolo. De acá en más los errores redirigen.
	responseType := oidc.NormalizeResponseType(params.Get(oidc.ParamResponseType))
	switch responseType {
	case oidc.ResponseTypeCode, oidc.ResponseTypeIDToken, oidc.ResponseTypeCodeIDToken:
	default:
		return authorizeClientError(req, oidc.ErrorUnsupportedResponseType, "unsupported response_type"), nil
	}
	req.ResponseType = responseType
	hasCode := oidc.ResponseTypeHas(responseType, oidc.ResponseTypeCode)
	hasIDToken := oidc.ResponseTypeHas(responseType, oidc.ResponseTypeIDToken)
	if hasCode && !client.AllowsGrantType(oidc.GrantTypeAuthorizationCode) {
		return authorizeClientError(req, oidc.ErrorUnauthorizedClient, "client is not allowed the authorization code flow"), nil
	}
	if hasIDToken && !client.AllowsGrantType(oidc.GrantTypeImplicit) {
		return authorizeClientError(req, oidc.ErrorUnauthorizedClient, "client is not allowed the implicit flow"), nil
	}

	// Con id_token en el front channel el default es fragment y query queda
	// prohibido: los tokens no viajan en la query string.
	defaultMode := oidc.ResponseModeQuery
	if hasIDToken {
		defaultMode = oidc.ResponseModeFragment
	}
	switch mode := params.Get(oidc.ParamResponseMode); mode {
	case "":
		req.ResponseMode = defaultMode
	case oidc.ResponseModeQuery:
		if hasIDToken {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "query response_mode is not allowed for this response_type"), nil
		}
		req.ResponseMode = oidc.ResponseModeQuery
	case oidc.ResponseModeFragment, oidc.ResponseModeFormPost:
		req.ResponseMode = mode
	default:
		return authorizeClientError(req, oidc.ErrorInvalidRequest, "unsupported response_mode"), nil
	}

	req.Nonce = params.Get(oidc.ParamNonce)
	if len(req.Nonce) > oidc.MaxNonceLength {
		return authorizeClientError(req, oidc.ErrorInvalidRequest, "nonce too long"), nil
	}
	req.LoginHint = params.Get(oidc.ParamLoginHint)
	if acr := params.Get(oidc.ParamACRValues); acr != "" {
		req.ACRValues = strings.Fields(acr)
	}

	switch prompt := params.Get(oidc.ParamPrompt); prompt {
	case "", oidc.PromptNone, oidc.PromptLogin, oidc.PromptConsent:
		req.Prompt = prompt
	default:
		return authorizeClientError(req, oidc.ErrorInvalidRequest, "unsupported prompt value"), nil
	}

	if rawMaxAge := params.Get(oidc.ParamMaxAge); rawMaxAge != "" {
		maxAge, err := strconv.Atoi(rawMaxAge)
		if err != nil || maxAge < 0 {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "malformed max_age"), nil
		}
		req.MaxAge = &maxAge
	}

	// 4. Scopes.
	rawScope := params.Get(oidc.ParamScope)
	if len(rawScope) > oidc.MaxScopeLength {
		return authorizeClientError(req, oidc.ErrorInvalidRequest, "scope too long"), nil
	}
	scopeRes, err := v.Scopes.Validate(ctx, client, strings.Fields(rawScope))
	if err != nil {
		return AuthorizeResult{}, err
	}
	if scopeRes.IsError {
		return authorizeClientError(req, scopeRes.Error, scopeRes.ErrorDescription), nil
	}
	req.RequestedScopes = strings.Fields(rawScope)
	req.ParsedScopes = scopeRes.Scopes
	req.Resources = scopeRes.Resources
	req.IsOpenID = scopeRes.HasOpenID
	if !req.IsOpenID && req.Nonce != "" {
		return authorizeClientError(req, oidc.ErrorInvalidRequest, "nonce requires the openid scope"), nil
	}
	if hasIDToken {
		if !req.IsOpenID {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "response_type id_token requires the openid scope"), nil
		}
		// OIDC Core §3.2.2.1: nonce obligatorio cuando el id_token sale por
		// el front channel.
		if req.Nonce == "" {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "nonce is required for this response_type"), nil
		}
	}

	// 5. PKCE. Obligatorio para clients públicos y para quien lo declare;
	// solo aplica cuando hay código que canjear.
	challenge := params.Get(oidc.ParamCodeChallenge)
	method := params.Get(oidc.ParamCodeChallengeMethod)
	needsPKCE := hasCode && (client.RequirePKCE || client.Type == domain.ClientTypePublic)
	if challenge == "" {
		if needsPKCE {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "code_challenge is required"), nil
		}
		if method != "" {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "code_challenge_method without code_challenge"), nil
		}
	} else {
		if len(challenge) < 43 || len(challenge) > 128 {
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "code_challenge length out of range"), nil
		}
		switch method {
		case "", oidc.CodeChallengeMethodS256:
			method = oidc.CodeChallengeMethodS256
		case oidc.CodeChallengeMethodPlain:
			if !client.AllowPlainTextPKCE {
				return authorizeClientError(req, oidc.ErrorInvalidRequest, "plain code_challenge_method not allowed"), nil
			}
		default:
			return authorizeClientError(req, oidc.ErrorInvalidRequest, "unsupported code_challenge_method"), nil
		}
		req.CodeChallenge = challenge
		req.CodeChallengeMethod = method
	}

	return AuthorizeResult{Request: req}, nil
}
