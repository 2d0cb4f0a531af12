package connect

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/validation"
)

// introspectionResponse es el body RFC 7662. Solo active es obligatorio.
type introspectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	SubjectID string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Expiry    int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// IntrospectController maneja POST /connect/introspect. Resuelve tokens de
// referencia y refresh tokens; los JWT son autocontenidos y los valida el
// resource por su cuenta.
type IntrospectController struct {
	Validator *validation.IntrospectionValidator
	RefTokens *grants.ReferenceTokenStore
	Refresh   *grants.RefreshTokenStore
}

func NewIntrospectController(v *validation.IntrospectionValidator, refTokens *grants.ReferenceTokenStore, refresh *grants.RefreshTokenStore) *IntrospectController {
	return &IntrospectController{Validator: v, RefTokens: refTokens, Refresh: refresh}
}

func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connect.introspect"))

	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}
	res, err := c.Validator.Validate(ctx, r, r.PostForm)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	if res.IsError {
		log.Warn("introspection rejected", logger.ProtocolError(res.Error))
		writeProtocolError(w, res.Error, res.ErrorDescription)
		return
	}
	req := res.Request

	// El hint solo ordena la búsqueda; un hint equivocado no es fallo.
	order := []string{oidc.TokenTypeHintAccessToken, oidc.TokenTypeHintRefreshToken}
	if req.TokenTypeHint == oidc.TokenTypeHintRefreshToken {
		order = []string{oidc.TokenTypeHintRefreshToken, oidc.TokenTypeHintAccessToken}
	}
	for _, kind := range order {
		out, err := c.lookup(r, req, kind)
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if out != nil {
			writeJSON(w, http.StatusOK, out)
			return
		}
	}
	writeJSON(w, http.StatusOK, introspectionResponse{Active: false})
}

// lookup resuelve el token como el tipo dado. Un caller client solo ve sus
// propios tokens; un caller resource ve los access tokens emitidos para su
// audiencia. Para cualquier otro caller el token no existe.
func (c *IntrospectController) lookup(r *http.Request, req *validation.ValidatedIntrospectionRequest, kind string) (*introspectionResponse, error) {
	ctx := r.Context()
	switch kind {
	case oidc.TokenTypeHintAccessToken:
		rt, err := c.RefTokens.Get(ctx, req.Token)
		if err != nil || rt == nil {
			return nil, err
		}
		if !accessTokenVisible(req, rt.ClientID, rt.Audiences) {
			logger.From(ctx).Warn("introspection of foreign token",
				logger.ClientID(callerID(req)))
			return &introspectionResponse{Active: false}, nil
		}
		return &introspectionResponse{
			Active:    true,
			Scope:     strings.Join(rt.Scopes, " "),
			ClientID:  rt.ClientID,
			SubjectID: rt.SubjectID,
			TokenType: oidc.TokenTypeHintAccessToken,
			Expiry:    rt.Expiry.Unix(),
			IssuedAt:  rt.IssuedAt.Unix(),
		}, nil
	default:
		// Refresh tokens son artefactos del client: un resource nunca los ve.
		rt, err := c.Refresh.Get(ctx, req.Token)
		if err != nil || rt == nil {
			return nil, err
		}
		if req.Client == nil || rt.ClientID != req.Client.ClientID {
			return &introspectionResponse{Active: false}, nil
		}
		return &introspectionResponse{
			Active:    true,
			Scope:     strings.Join(rt.Scopes, " "),
			ClientID:  rt.ClientID,
			SubjectID: rt.Subject.SubjectID,
			TokenType: oidc.TokenTypeHintRefreshToken,
		}, nil
	}
}

func accessTokenVisible(req *validation.ValidatedIntrospectionRequest, ownerClientID string, audiences []string) bool {
	if req.Client != nil {
		return ownerClientID == req.Client.ClientID
	}
	if req.Resource != nil {
		for _, aud := range audiences {
			if aud == req.Resource.Name {
				return true
			}
		}
	}
	return false
}

func callerID(req *validation.ValidatedIntrospectionRequest) string {
	if req.Client != nil {
		return req.Client.ClientID
	}
	if req.Resource != nil {
		return req.Resource.Name
	}
	return ""
}
