package connect

import (
	"context"
	"html/template"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/janus/internal/audit"
	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/validation"
)

// SessionTerminator cierra la sesión del usuario actual.
type SessionTerminator interface {
	Terminate(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// EndSessionController maneja GET /connect/endsession y su callback.
type EndSessionController struct {
	Validator *validation.EndSessionValidator
	Clients   domain.ClientStore
	Sessions  SessionTerminator
	Audit     *audit.Recorder
}

func NewEndSessionController(v *validation.EndSessionValidator, clients domain.ClientStore, sessions SessionTerminator, rec *audit.Recorder) *EndSessionController {
	return &EndSessionController{Validator: v, Clients: clients, Sessions: sessions, Audit: rec}
}

// EndSession valida el request de logout, cierra la sesión y redirige al
// callback. El redirect post-logout viaja por query y el callback lo
// re-valida contra el client: el callback no confía en su caller.
func (c *EndSessionController) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connect.endsession"))

	res, err := c.Validator.Validate(ctx, r.URL.Query())
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	if res.IsError {
		log.Warn("end session rejected", logger.ProtocolError(res.Error))
		writeProtocolError(w, res.Error, res.ErrorDescription)
		return
	}

	if c.Sessions != nil {
		if err := c.Sessions.Terminate(ctx, w, r); err != nil {
			writeServerError(w, r, err)
			return
		}
	}
	if c.Audit != nil {
		ev := audit.Event{Name: audit.EventEndSession, SubjectID: res.Request.SubjectID}
		if res.Request.Client != nil {
			ev.ClientID = res.Request.Client.ClientID
		}
		c.Audit.Record(ctx, ev)
	}

	cb := url.Values{}
	if res.Request.PostLogoutRedirectURI != "" && res.Request.Client != nil {
		cb.Set(oidc.ParamClientID, res.Request.Client.ClientID)
		cb.Set(oidc.ParamPostLogoutRedirectURI, res.Request.PostLogoutRedirectURI)
		if res.Request.State != "" {
			cb.Set(oidc.ParamState, res.Request.State)
		}
	}
	target := "/connect/endsession/callback"
	if enc := cb.Encode(); enc != "" {
		target += "?" + enc
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// EndSessionCallback cierra el círculo: re-valida el post-logout redirect y
// manda al usuario de vuelta al client, o renderiza la página de logout.
func (c *EndSessionController) EndSessionCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	clientID := q.Get(oidc.ParamClientID)
	uri := q.Get(oidc.ParamPostLogoutRedirectURI)
	if clientID != "" && uri != "" {
		client, err := c.Clients.FindClientByID(ctx, clientID)
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if client != nil && client.HasPostLogoutRedirectURI(uri) {
			if state := q.Get(oidc.ParamState); state != "" {
				sep := "?"
				if u, err := url.Parse(uri); err == nil && u.RawQuery != "" {
					sep = "&"
				}
				uri += sep + oidc.ParamState + "=" + url.QueryEscape(state)
			}
			http.Redirect(w, r, uri, http.StatusFound)
			return
		}
		logger.From(ctx).Warn("end session callback with invalid redirect",
			logger.ClientID(clientID))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loggedOutTmpl.Execute(w, nil)
}

var loggedOutTmpl = template.Must(template.New("logged_out").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed out</title></head>
<body><h1>You have been signed out</h1></body>
</html>`))
