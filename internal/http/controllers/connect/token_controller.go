package connect

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/response"
	"github.com/dropDatabas3/janus/internal/validation"
)

// TokenController maneja POST /connect/token.
type TokenController struct {
	Validator *validation.TokenValidator
	Responder *response.TokenResponder
}

func NewTokenController(v *validation.TokenValidator, g *response.TokenResponder) *TokenController {
	return &TokenController{Validator: v, Responder: g}
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connect.token"))

	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}
	grantType := r.PostForm.Get(oidc.ParamGrantType)

	start := time.Now()
	res, err := c.Validator.Validate(ctx, r, r.PostForm)
	metrics.ObserveValidation("token", time.Since(start).Seconds())
	if err != nil {
		metrics.TokenRequest(grantType, "error")
		writeServerError(w, r, err)
		return
	}
	if res.IsError {
		log.Warn("token request rejected",
			logger.GrantType(grantType), logger.ProtocolError(res.Error))
		metrics.TokenRequest(grantType, res.Error)
		writeProtocolError(w, res.Error, res.ErrorDescription)
		return
	}

	out, err := c.Responder.Respond(ctx, res.Request)
	if err != nil {
		metrics.TokenRequest(grantType, "error")
		writeServerError(w, r, err)
		return
	}
	metrics.TokenRequest(grantType, "success")
	writeJSON(w, http.StatusOK, out)
}
