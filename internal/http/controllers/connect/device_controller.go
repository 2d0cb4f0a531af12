package connect

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/response"
	"github.com/dropDatabas3/janus/internal/validation"
)

// DeviceAuthorizationController maneja POST /connect/deviceauthorization.
type DeviceAuthorizationController struct {
	Validator *validation.DeviceAuthorizationValidator
	Responder *response.DeviceResponder
}

func NewDeviceAuthorizationController(v *validation.DeviceAuthorizationValidator, g *response.DeviceResponder) *DeviceAuthorizationController {
	return &DeviceAuthorizationController{Validator: v, Responder: g}
}

func (c *DeviceAuthorizationController) DeviceAuthorization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connect.deviceauthorization"))

	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}

	start := time.Now()
	res, err := c.Validator.Validate(ctx, r, r.PostForm)
	metrics.ObserveValidation("deviceauthorization", time.Since(start).Seconds())
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	if res.IsError {
		log.Warn("device authorization rejected", logger.ProtocolError(res.Error))
		writeProtocolError(w, res.Error, res.ErrorDescription)
		return
	}

	out, err := c.Responder.Respond(ctx, res.Request)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
