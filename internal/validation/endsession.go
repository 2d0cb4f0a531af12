package validation

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// IDTokenParser verifica un id_token_hint. Expiración no cuenta: un id_token
// vencido sigue identificando la sesión a cerrar, la firma sí debe validar.
type IDTokenParser interface {
	ParseNoExpiry(token string) (map[string]any, error)
}

// EndSessionValidator valida el logout iniciado por el client (OIDC RP-Initiated
// Logout). Sin hint válido no hay post_logout_redirect_uri: se cae al logout
// genérico sin redirect.
type EndSessionValidator struct {
	Clients domain.ClientStore
	Parser  IDTokenParser
}

func NewEndSessionValidator(clients domain.ClientStore, parser IDTokenParser) *EndSessionValidator {
	return &EndSessionValidator{Clients: clients, Parser: parser}
}

func (v *EndSessionValidator) Validate(ctx context.Context, params url.Values) (EndSessionResult, error) {
	req := &ValidatedEndSessionRequest{
		State:     params.Get(oidc.ParamState),
		SessionID: params.Get(oidc.ParamSID),
	}

	hint := params.Get(oidc.ParamIDTokenHint)
	if hint != "" {
		claims, err := v.Parser.ParseNoExpiry(hint)
		if err != nil {
			logger.From(ctx).Warn("end session with unverifiable id_token_hint", logger.Err(err))
			return EndSessionResult{Result: fail(oidc.ErrorInvalidRequest, "invalid id_token_hint")}, nil
		}
		sub, _ := claims["sub"].(string)
		req.SubjectID = sub
		if sid, found := claims["sid"].(string); found && req.SessionID == "" {
			req.SessionID = sid
		}
		clientID := audClientID(claims["aud"])
		if clientID != "" {
			client, err := v.Clients.FindClientByID(ctx, clientID)
			if err != nil {
				return EndSessionResult{}, err
			}
			req.Client = client
		}
	}

	if uri := params.Get(oidc.ParamPostLogoutRedirectURI); uri != "" {
		if len(uri) > oidc.MaxRedirectURILength {
			return EndSessionResult{Result: fail(oidc.ErrorInvalidRequest, "post_logout_redirect_uri too long")}, nil
		}
		// Solo un hint verificado habilita el redirect: sin client conocido el
		// target no se puede chequear contra nada.
		if req.Client == nil {
			return EndSessionResult{Result: fail(oidc.ErrorInvalidRequest, "post_logout_redirect_uri requires a valid id_token_hint")}, nil
		}
		if !req.Client.HasPostLogoutRedirectURI(uri) {
			logger.From(ctx).Warn("end session with unregistered post_logout_redirect_uri",
				logger.ClientID(req.Client.ClientID), logger.String("post_logout_redirect_uri", uri))
			return EndSessionResult{Result: fail(oidc.ErrorInvalidRequest, "invalid post_logout_redirect_uri")}, nil
		}
		req.PostLogoutRedirectURI = uri
	}

	return EndSessionResult{Request: req}, nil
}

// audClientID extrae el client del claim aud, que puede venir como string o
// como array JSON.
func audClientID(aud any) string {
	switch v := aud.(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, isString := v[0].(string); isString {
				return s
			}
		}
	}
	return ""
}
