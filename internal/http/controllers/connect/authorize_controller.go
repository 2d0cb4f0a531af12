package connect

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/janus/internal/interaction"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/response"
	"github.com/dropDatabas3/janus/internal/session"
	"github.com/dropDatabas3/janus/internal/validation"
)

// AuthorizeController maneja GET|POST /connect/authorize.
type AuthorizeController struct {
	Validator *validation.AuthorizeValidator
	Interact  *interaction.Generator
	Responder *response.AuthorizeResponder
	Sessions  session.Reader
	// LoginURL y ConsentURL son las pantallas del host; reciben returnUrl.
	LoginURL   string
	ConsentURL string
}

func NewAuthorizeController(v *validation.AuthorizeValidator, i *interaction.Generator, g *response.AuthorizeResponder, sessions session.Reader, loginURL, consentURL string) *AuthorizeController {
	return &AuthorizeController{
		Validator: v, Interact: i, Responder: g, Sessions: sessions,
		LoginURL: loginURL, ConsentURL: consentURL,
	}
}

func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connect.authorize"))

	var params url.Values
	switch r.Method {
	case http.MethodGet:
		params = r.URL.Query()
	case http.MethodPost:
		if !parseForm(w, r) {
			return
		}
		params = r.PostForm
	default:
		w.Header().Set("Allow", "GET, POST")
		c.renderErrorPage(w, "invalid_request", "only GET and POST are allowed")
		return
	}

	res, err := c.Validator.Validate(ctx, params)
	if err != nil {
		metrics.AuthorizeRequest("error")
		writeServerError(w, r, err)
		return
	}
	if res.IsError {
		metrics.AuthorizeRequest(res.Error)
		if res.UserError {
			// redirect_uri sin verificar: página de error, nunca redirect.
			log.Warn("authorize request rejected", logger.ProtocolError(res.Error))
			c.renderErrorPage(w, res.Error, res.ErrorDescription)
			return
		}
		c.redirectError(w, r, res.Request, res.Error, res.ErrorDescription)
		return
	}

	sess, err := c.Sessions.Current(ctx, r)
	if err != nil {
		metrics.AuthorizeRequest("error")
		writeServerError(w, r, err)
		return
	}

	decision, err := c.Interact.Evaluate(ctx, res.Request, sess)
	if err != nil {
		metrics.AuthorizeRequest("error")
		writeServerError(w, r, err)
		return
	}
	switch decision.Outcome {
	case interaction.Login:
		metrics.AuthorizeRequest("login")
		c.redirectInteraction(w, r, c.LoginURL)
		return
	case interaction.Consent:
		metrics.AuthorizeRequest("consent")
		c.redirectInteraction(w, r, c.ConsentURL)
		return
	case interaction.Error:
		metrics.AuthorizeRequest(decision.Error)
		c.redirectError(w, r, res.Request, decision.Error, decision.ErrorDescription)
		return
	}

	out, err := c.Responder.Respond(ctx, res.Request, sess, false)
	if err != nil {
		metrics.AuthorizeRequest("error")
		writeServerError(w, r, err)
		return
	}
	metrics.AuthorizeRequest("success")
	c.deliver(w, r, out)
}

// redirectInteraction manda al usuario a la pantalla del host con el request
// original como returnUrl, para retomar el authorize al volver.
func (c *AuthorizeController) redirectInteraction(w http.ResponseWriter, r *http.Request, target string) {
	returnURL := r.URL.String()
	sep := "?"
	if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	http.Redirect(w, r, target+sep+"returnUrl="+url.QueryEscape(returnURL), http.StatusFound)
}

func (c *AuthorizeController) redirectError(w http.ResponseWriter, r *http.Request, req *validation.ValidatedAuthorizeRequest, code, description string) {
	out, err := c.Responder.RespondError(req, code, description)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	c.deliver(w, r, out)
}

func (c *AuthorizeController) deliver(w http.ResponseWriter, r *http.Request, out *response.AuthorizeResponse) {
	if out.FormPostHTML != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(out.FormPostHTML))
		return
	}
	http.Redirect(w, r, out.RedirectURI, http.StatusFound)
}

var errorPageTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization error</title></head>
<body>
<h1>Authorization error</h1>
<p><strong>{{.Code}}</strong>{{if .Description}}: {{.Description}}{{end}}</p>
</body>
</html>`))

func (c *AuthorizeController) renderErrorPage(w http.ResponseWriter, code, description string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_ = errorPageTmpl.Execute(w, struct{ Code, Description string }{code, description})
}
