package interaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/session"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/dropDatabas3/janus/internal/validation"
)

func newFixture(t *testing.T) (*Generator, *grants.UserConsentStore) {
	t.Helper()
	consents := grants.NewUserConsentStore(storage.NewMemoryGrantStore())
	return NewGenerator(consents), consents
}

func authorizeReq(mutate func(*validation.ValidatedAuthorizeRequest)) *validation.ValidatedAuthorizeRequest {
	req := &validation.ValidatedAuthorizeRequest{
		Client: &domain.Client{
			ClientID: "web-app",
		},
		ResponseType:    oidc.ResponseTypeCode,
		RedirectURI:     "https://app.example.com/cb",
		RequestedScopes: []string{"openid", "profile"},
		IsOpenID:        true,
	}
	if mutate != nil {
		mutate(req)
	}
	return req
}

func activeSession(age time.Duration) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		SubjectID: "user-1",
		SessionID: "sid-1",
		AuthTime:  now.Add(-age),
		Expires:   now.Add(time.Hour),
	}
}

func TestEvaluate_NoSessionRequiresLogin(t *testing.T) {
	g, _ := newFixture(t)

	res, err := g.Evaluate(context.Background(), authorizeReq(nil), nil)
	require.NoError(t, err)
	require.Equal(t, Login, res.Outcome)
}

func TestEvaluate_ActiveSessionProceeds(t *testing.T) {
	g, _ := newFixture(t)

	res, err := g.Evaluate(context.Background(), authorizeReq(nil), activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Proceed, res.Outcome)
}

func TestEvaluate_PromptLoginForcesReauth(t *testing.T) {
	g, _ := newFixture(t)

	req := authorizeReq(func(r *validation.ValidatedAuthorizeRequest) {
		r.Prompt = oidc.PromptLogin
	})
	res, err := g.Evaluate(context.Background(), req, activeSession(time.Second))
	require.NoError(t, err)
	require.Equal(t, Login, res.Outcome)
}

func TestEvaluate_MaxAge(t *testing.T) {
	g, _ := newFixture(t)
	ctx := context.Background()

	maxAge := 300
	fresh := authorizeReq(func(r *validation.ValidatedAuthorizeRequest) { r.MaxAge = &maxAge })
	res, err := g.Evaluate(ctx, fresh, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Proceed, res.Outcome)

	res, err = g.Evaluate(ctx, fresh, activeSession(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, Login, res.Outcome)
}

func TestEvaluate_ClientMaxAge(t *testing.T) {
	g, _ := newFixture(t)

	req := authorizeReq(func(r *validation.ValidatedAuthorizeRequest) {
		r.Client.MaxAge = 60
	})
	res, err := g.Evaluate(context.Background(), req, activeSession(5*time.Minute))
	require.NoError(t, err)
	require.Equal(t, Login, res.Outcome)
}

func TestEvaluate_PromptNoneErrors(t *testing.T) {
	g, consents := newFixture(t)
	ctx := context.Background()

	// Sin sesión: login_required.
	req := authorizeReq(func(r *validation.ValidatedAuthorizeRequest) {
		r.Prompt = oidc.PromptNone
	})
	res, err := g.Evaluate(ctx, req, nil)
	require.NoError(t, err)
	require.Equal(t, Error, res.Outcome)
	require.Equal(t, oidc.ErrorLoginRequired, res.Error)

	// Con sesión pero sin consent almacenado: consent_required.
	req = authorizeReq(func(r *validation.ValidatedAuthorizeRequest) {
		r.Prompt = oidc.PromptNone
		r.Client.RequireConsent = true
	})
	res, err = g.Evaluate(ctx, req, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Error, res.Outcome)
	require.Equal(t, oidc.ErrorConsentRequired, res.Error)

	// Consent que cubre los scopes pedidos: proceed.
	require.NoError(t, consents.Store(ctx, &serialization.Consent{
		SubjectID: "user-1",
		ClientID:  "web-app",
		Scopes:    []string{"openid", "profile"},
	}, time.Hour))
	res, err = g.Evaluate(ctx, req, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Proceed, res.Outcome)
}

func TestEvaluate_ConsentCoverage(t *testing.T) {
	g, consents := newFixture(t)
	ctx := context.Background()

	req := authorizeReq(func(r *validation.ValidatedAuthorizeRequest) {
		r.Client.RequireConsent = true
	})

	res, err := g.Evaluate(ctx, req, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Consent, res.Outcome)

	// Consent parcial no alcanza.
	require.NoError(t, consents.Store(ctx, &serialization.Consent{
		SubjectID: "user-1",
		ClientID:  "web-app",
		Scopes:    []string{"openid"},
	}, time.Hour))
	res, err = g.Evaluate(ctx, req, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Consent, res.Outcome)

	require.NoError(t, consents.Store(ctx, &serialization.Consent{
		SubjectID: "user-1",
		ClientID:  "web-app",
		Scopes:    []string{"openid", "profile"},
	}, time.Hour))
	res, err = g.Evaluate(ctx, req, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Proceed, res.Outcome)
}

func TestEvaluate_PromptConsentAlwaysAsks(t *testing.T) {
	g, consents := newFixture(t)
	ctx := context.Background()

	require.NoError(t, consents.Store(ctx, &serialization.Consent{
		SubjectID: "user-1",
		ClientID:  "web-app",
		Scopes:    []string{"openid", "profile"},
	}, time.Hour))

	req := authorizeReq(func(r *validation.ValidatedAuthorizeRequest) {
		r.Prompt = oidc.PromptConsent
	})
	res, err := g.Evaluate(ctx, req, activeSession(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Consent, res.Outcome)
}
