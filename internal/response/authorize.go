package response

import (
	"context"
	"html/template"
	"net/url"
	"strings"

	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/session"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/dropDatabas3/janus/internal/validation"
)

// AuthorizeResponse es el resultado del authorize endpoint listo para
// transportar: o un redirect (query/fragment) o un form_post autogenerado.
type AuthorizeResponse struct {
	// RedirectURI es la URI final con los parámetros ya embebidos. Vacía
	// cuando el response_mode es form_post.
	RedirectURI string
	// FormPostHTML es la página auto-submit para form_post. Vacía en los
	// otros modos.
	FormPostHTML string
}

// AuthorizeResponder acuña los artefactos del authorize endpoint (código y,
// para implicit/hybrid, el id_token) y construye la respuesta según el
// response_mode pedido.
type AuthorizeResponder struct {
	Codes     *grants.AuthorizationCodeStore
	Issuer    *jwt.Issuer
	Lifetimes Lifetimes
}

func NewAuthorizeResponder(codes *grants.AuthorizationCodeStore, issuer *jwt.Issuer, lifetimes Lifetimes) *AuthorizeResponder {
	return &AuthorizeResponder{Codes: codes, Issuer: issuer, Lifetimes: lifetimes}
}

// Respond emite los artefactos para un request aprobado (interaction →
// Proceed). Según el response_type salen código, id_token o ambos; con ambos
// el id_token carga c_hash para atar el código al token.
func (g *AuthorizeResponder) Respond(ctx context.Context, req *validation.ValidatedAuthorizeRequest, sess *session.Session, consentShown bool) (*AuthorizeResponse, error) {
	values := url.Values{}
	code := ""

	if oidc.ResponseTypeHas(req.ResponseType, oidc.ResponseTypeCode) {
		payload := &serialization.AuthorizationCode{
			ClientID:            req.Client.ClientID,
			Subject:             sess.Subject(),
			SessionID:           sess.SessionID,
			RedirectURI:         req.RedirectURI,
			RequestedScopes:     req.RequestedScopes,
			Nonce:               req.Nonce,
			State:               req.State,
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
			WasConsentShown:     consentShown,
		}
		issued, err := g.Codes.Issue(ctx, payload, g.Lifetimes.authorizationCode(req.Client))
		if err != nil {
			return nil, err
		}
		code = issued
		values.Set(oidc.ParamCode, code)
		logger.From(ctx).Info("authorization code issued",
			logger.ClientID(req.Client.ClientID), logger.SubjectID(sess.SubjectID))
	}

	if oidc.ResponseTypeHas(req.ResponseType, oidc.ResponseTypeIDToken) {
		idToken, _, err := g.Issuer.IssueIDToken(jwt.IDTokenInput{
			SubjectID: sess.SubjectID,
			ClientID:  req.Client.ClientID,
			SessionID: sess.SessionID,
			Nonce:     req.Nonce,
			AuthTime:  sess.AuthTime,
			AMR:       sess.AMR,
			Code:      code,
			Lifetime:  g.Lifetimes.identityToken(req.Client),
		})
		if err != nil {
			return nil, err
		}
		values.Set(oidc.ParamIDToken, idToken)
		logger.From(ctx).Info("identity token issued from front channel",
			logger.ClientID(req.Client.ClientID), logger.SubjectID(sess.SubjectID))
	}

	if req.State != "" {
		values.Set(oidc.ParamState, req.State)
	}
	return buildAuthorizeTransport(req.RedirectURI, req.ResponseMode, values)
}

// RespondError construye la respuesta de error de client: el error viaja a la
// redirect_uri ya validada, por el mismo response_mode del request.
func (g *AuthorizeResponder) RespondError(req *validation.ValidatedAuthorizeRequest, code, description string) (*AuthorizeResponse, error) {
	values := url.Values{}
	values.Set("error", code)
	if description != "" {
		values.Set("error_description", description)
	}
	if req.State != "" {
		values.Set(oidc.ParamState, req.State)
	}
	mode := req.ResponseMode
	if mode == "" {
		mode = oidc.ResponseModeQuery
	}
	return buildAuthorizeTransport(req.RedirectURI, mode, values)
}

func buildAuthorizeTransport(redirectURI, mode string, values url.Values) (*AuthorizeResponse, error) {
	switch mode {
	case oidc.ResponseModeFragment:
		return &AuthorizeResponse{RedirectURI: redirectURI + "#" + values.Encode()}, nil
	case oidc.ResponseModeFormPost:
		html, err := renderFormPost(redirectURI, values)
		if err != nil {
			return nil, err
		}
		return &AuthorizeResponse{FormPostHTML: html}, nil
	default:
		sep := "?"
		if strings.Contains(redirectURI, "?") {
			sep = "&"
		}
		return &AuthorizeResponse{RedirectURI: redirectURI + sep + values.Encode()}, nil
	}
}

// formPostTmpl es la página auto-submit del response_mode form_post
// (OAuth 2.0 Form Post Response Mode). html/template escapa los valores.
var formPostTmpl = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submit this form</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}"/>
{{- end}}
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>`))

type formPostField struct {
	Name  string
	Value string
}

func renderFormPost(action string, values url.Values) (string, error) {
	fields := make([]formPostField, 0, len(values))
	for name := range values {
		fields = append(fields, formPostField{Name: name, Value: values.Get(name)})
	}
	var b strings.Builder
	err := formPostTmpl.Execute(&b, struct {
		Action string
		Fields []formPostField
	}{Action: action, Fields: fields})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
