package connect

import (
	"net/http"

	"github.com/dropDatabas3/janus/internal/audit"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/validation"
)

// RevokeController maneja POST /connect/revocation (RFC 7009).
type RevokeController struct {
	Validator *validation.IntrospectionValidator
	RefTokens *grants.ReferenceTokenStore
	Refresh   *grants.RefreshTokenStore
	Audit     *audit.Recorder
}

func NewRevokeController(v *validation.IntrospectionValidator, refTokens *grants.ReferenceTokenStore, refresh *grants.RefreshTokenStore, rec *audit.Recorder) *RevokeController {
	return &RevokeController{Validator: v, RefTokens: refTokens, Refresh: refresh, Audit: rec}
}

// Revoke invalida el token presentado. RFC 7009 §2.2: el endpoint responde
// 200 aunque el token no exista; solo el dueño puede revocar, para el resto
// la revocación es un no-op silencioso.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connect.revocation"))

	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}
	res, err := c.Validator.Validate(ctx, r, r.PostForm)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	if res.IsError {
		log.Warn("revocation rejected", logger.ProtocolError(res.Error))
		writeProtocolError(w, res.Error, res.ErrorDescription)
		return
	}
	req := res.Request

	// RFC 7009 es client-facing: un API resource autenticado no revoca nada;
	// el endpoint responde 200 igual.
	if req.Client == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	revoked := ""
	if req.TokenTypeHint != oidc.TokenTypeHintRefreshToken {
		rt, err := c.RefTokens.Get(ctx, req.Token)
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if rt != nil && rt.ClientID == req.Client.ClientID {
			if err := c.RefTokens.Revoke(ctx, req.Token); err != nil {
				writeServerError(w, r, err)
				return
			}
			revoked = oidc.TokenTypeHintAccessToken
		}
	}
	if revoked == "" {
		rt, err := c.Refresh.Get(ctx, req.Token)
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if rt != nil && rt.ClientID == req.Client.ClientID {
			if err := c.Refresh.Revoke(ctx, req.Token); err != nil {
				writeServerError(w, r, err)
				return
			}
			revoked = oidc.TokenTypeHintRefreshToken
		}
	}

	if revoked != "" {
		log.Info("token revoked", logger.ClientID(req.Client.ClientID),
			logger.String("token_type", revoked))
		if c.Audit != nil {
			c.Audit.Record(ctx, audit.Event{
				Name:     audit.EventTokenRevoked,
				ClientID: req.Client.ClientID,
				Detail:   map[string]any{"token_type": revoked},
			})
		}
	}
	w.WriteHeader(http.StatusOK)
}
