// Package interaction decide, para un authorize request ya validado, si hace
// falta login, consentimiento, o se puede proceder directo a emitir respuesta.
package interaction

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/session"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/validation"
)

// Outcome es el estado terminal de la decisión.
type Outcome int

const (
	// Proceed: seguir al response generator.
	Proceed Outcome = iota
	// Login: redirigir a la pantalla de login del host.
	Login
	// Consent: redirigir a la pantalla de consentimiento del host.
	Consent
	// Error: prompt=none convirtió la interacción en error de protocolo.
	Error
)

// Response es la salida del generador.
type Response struct {
	Outcome          Outcome
	Error            string
	ErrorDescription string
}

// Generator evalúa, en orden: sesión ausente → Login; prompt=login → Login;
// max_age vencido → Login; consentimiento requerido y no cubierto → Consent;
// si no → Proceed. prompt=none vuelve Login/Consent errores.
type Generator struct {
	Consents *grants.UserConsentStore
}

func NewGenerator(consents *grants.UserConsentStore) *Generator {
	return &Generator{Consents: consents}
}

func (g *Generator) Evaluate(ctx context.Context, req *validation.ValidatedAuthorizeRequest, sess *session.Session) (Response, error) {
	if needsLogin(req, sess) {
		if req.Prompt == oidc.PromptNone {
			return Response{Outcome: Error, Error: oidc.ErrorLoginRequired, ErrorDescription: "authentication is required"}, nil
		}
		return Response{Outcome: Login}, nil
	}

	needed, err := g.needsConsent(ctx, req, sess)
	if err != nil {
		return Response{}, err
	}
	if needed {
		if req.Prompt == oidc.PromptNone {
			return Response{Outcome: Error, Error: oidc.ErrorConsentRequired, ErrorDescription: "consent is required"}, nil
		}
		return Response{Outcome: Consent}, nil
	}
	return Response{Outcome: Proceed}, nil
}

func needsLogin(req *validation.ValidatedAuthorizeRequest, sess *session.Session) bool {
	if sess == nil {
		return true
	}
	// prompt=login fuerza re-autenticación una vez; el host marca la sesión
	// fresca al volver y el parámetro ya no viene en el retry.
	if req.Prompt == oidc.PromptLogin {
		return true
	}
	age := time.Since(sess.AuthTime)
	if req.MaxAge != nil && age > time.Duration(*req.MaxAge)*time.Second {
		return true
	}
	if req.Client.MaxAge > 0 && age > time.Duration(req.Client.MaxAge)*time.Second {
		return true
	}
	return false
}

func (g *Generator) needsConsent(ctx context.Context, req *validation.ValidatedAuthorizeRequest, sess *session.Session) (bool, error) {
	if req.Prompt == oidc.PromptConsent {
		return true, nil
	}
	if !req.Client.RequireConsent {
		return false, nil
	}
	consent, err := g.Consents.Get(ctx, req.Client.ClientID, sess.SubjectID)
	if err != nil {
		return false, err
	}
	if !grants.Covers(consent, req.RequestedScopes) {
		logger.From(ctx).Debug("stored consent does not cover request",
			logger.ClientID(req.Client.ClientID), logger.SubjectID(sess.SubjectID))
		return true, nil
	}
	return false, nil
}
