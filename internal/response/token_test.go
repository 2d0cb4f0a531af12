package response

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/dropDatabas3/janus/internal/validation"
)

type tokenFixture struct {
	responder *TokenResponder
	issuer    *jwt.Issuer
	refresh   *grants.RefreshTokenStore
	refTokens *grants.ReferenceTokenStore
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	ks, err := jwt.NewKeystore()
	require.NoError(t, err)
	issuer := jwt.NewIssuer("https://op.example.com", ks)

	mem := storage.NewMemoryGrantStore()
	refresh := grants.NewRefreshTokenStore(mem)
	refTokens := grants.NewReferenceTokenStore(mem)
	return &tokenFixture{
		responder: NewTokenResponder(issuer, refTokens, refresh, DefaultLifetimes(), nil),
		issuer:    issuer,
		refresh:   refresh,
		refTokens: refTokens,
	}
}

func tokenSubject() *serialization.Subject {
	return &serialization.Subject{
		SubjectID: "user-1",
		AuthTime:  time.Now().UTC().Add(-time.Minute),
		AMR:       []string{"pwd"},
	}
}

func codeGrantRequest(mutate func(*validation.ValidatedTokenRequest)) *validation.ValidatedTokenRequest {
	req := &validation.ValidatedTokenRequest{
		Client: &domain.Client{
			ClientID:        "web-app",
			AccessTokenType: domain.AccessTokenJWT,
		},
		GrantType: oidc.GrantTypeAuthorizationCode,
		Scopes:    []string{"openid", "profile"},
		Resources: domain.Resources{
			APIResources: []domain.APIResource{{Name: "inventory-api", Enabled: true}},
		},
		Subject:   tokenSubject(),
		SessionID: "sid-1",
		AuthorizationCode: &serialization.AuthorizationCode{
			ClientID: "web-app",
			Nonce:    "n-1",
		},
	}
	if mutate != nil {
		mutate(req)
	}
	return req
}

func TestTokenResponder_CodeGrantJWT(t *testing.T) {
	f := newTokenFixture(t)

	resp, err := f.responder.Respond(context.Background(), codeGrantRequest(nil))
	require.NoError(t, err)

	require.Equal(t, oidc.TokenTypeBearer, resp.TokenType)
	require.Equal(t, "openid profile", resp.Scope)
	require.InDelta(t, 3600, resp.ExpiresIn, 2)
	// Sin offline_access no hay refresh token.
	require.Empty(t, resp.RefreshToken)

	claims, err := f.issuer.Parse(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "web-app", claims["client_id"])
	require.Equal(t, "inventory-api", claims["aud"])
	require.Equal(t, "openid profile", claims["scope"])
	require.Equal(t, "sid-1", claims["sid"])

	// openid + subject: id_token presente, aud = client_id, nonce del código.
	idClaims, err := f.issuer.Parse(resp.IDToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", idClaims["sub"])
	require.Equal(t, "web-app", idClaims["aud"])
	require.Equal(t, "n-1", idClaims["nonce"])
	require.NotEmpty(t, idClaims["at_hash"])
}

func TestTokenResponder_OfflineAccessIssuesRefreshToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	req := codeGrantRequest(func(r *validation.ValidatedTokenRequest) {
		r.Scopes = []string{"openid", "offline_access"}
	})
	resp, err := f.responder.Respond(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.RefreshToken)

	rt, err := f.refresh.Get(ctx, resp.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, rt)
	require.Equal(t, "user-1", rt.Subject.SubjectID)
	require.Equal(t, []string{"openid", "offline_access"}, rt.Scopes)
}

func TestTokenResponder_ReferenceAccessToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	req := codeGrantRequest(func(r *validation.ValidatedTokenRequest) {
		r.Client.AccessTokenType = domain.AccessTokenReference
	})
	resp, err := f.responder.Respond(ctx, req)
	require.NoError(t, err)

	// Handle opaco, no JWT.
	_, err = f.issuer.Parse(resp.AccessToken)
	require.Error(t, err)

	ref, err := f.refTokens.Get(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, "user-1", ref.SubjectID)
	require.Equal(t, []string{"inventory-api"}, ref.Audiences)
}

func TestTokenResponder_ClientCredentialsSubFallsBackToClientID(t *testing.T) {
	f := newTokenFixture(t)

	req := &validation.ValidatedTokenRequest{
		Client: &domain.Client{
			ClientID:        "m2m-app",
			AccessTokenType: domain.AccessTokenJWT,
		},
		GrantType: oidc.GrantTypeClientCredentials,
		Scopes:    []string{"api.read"},
	}
	resp, err := f.responder.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, resp.IDToken)
	require.Empty(t, resp.RefreshToken)

	claims, err := f.issuer.Parse(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "m2m-app", claims["sub"])
}

func TestTokenResponder_RefreshRotation(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	handle, err := f.refresh.Issue(ctx, &serialization.RefreshToken{
		ClientID: "web-app",
		Subject:  *tokenSubject(),
		Scopes:   []string{"openid", "offline_access"},
	}, time.Hour)
	require.NoError(t, err)

	req := codeGrantRequest(func(r *validation.ValidatedTokenRequest) {
		r.GrantType = oidc.GrantTypeRefreshToken
		r.Client.RefreshTokenUsage = domain.RefreshTokenUsageRotate
		r.Scopes = []string{"openid", "offline_access"}
		r.AuthorizationCode = nil
		r.RefreshTokenHandle = handle
	})
	resp, err := f.responder.Respond(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEqual(t, handle, resp.RefreshToken)

	// El handle anterior queda invalidado.
	old, err := f.refresh.Get(ctx, handle)
	require.NoError(t, err)
	require.Nil(t, old)
	fresh, err := f.refresh.Get(ctx, resp.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, fresh)
}

func TestTokenResponder_RefreshReuseSliding(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	handle, err := f.refresh.Issue(ctx, &serialization.RefreshToken{
		ClientID: "web-app",
		Subject:  *tokenSubject(),
		Scopes:   []string{"openid", "offline_access"},
	}, time.Minute)
	require.NoError(t, err)

	req := codeGrantRequest(func(r *validation.ValidatedTokenRequest) {
		r.GrantType = oidc.GrantTypeRefreshToken
		r.Client.RefreshTokenUsage = domain.RefreshTokenUsageReuse
		r.Client.RefreshTokenExpiration = domain.RefreshTokenExpirationSliding
		r.Scopes = []string{"openid", "offline_access"}
		r.AuthorizationCode = nil
		r.RefreshTokenHandle = handle
	})
	resp, err := f.responder.Respond(ctx, req)
	require.NoError(t, err)
	// Reuse devuelve el mismo handle; sliding corrió la expiración.
	require.Equal(t, handle, resp.RefreshToken)

	rt, err := f.refresh.Get(ctx, handle)
	require.NoError(t, err)
	require.NotNil(t, rt)
}

func TestTokenResponder_RotationLostRace(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	handle, err := f.refresh.Issue(ctx, &serialization.RefreshToken{
		ClientID: "web-app",
		Subject:  *tokenSubject(),
		Scopes:   []string{"openid", "offline_access"},
	}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.refresh.Revoke(ctx, handle))

	req := codeGrantRequest(func(r *validation.ValidatedTokenRequest) {
		r.GrantType = oidc.GrantTypeRefreshToken
		r.Client.RefreshTokenUsage = domain.RefreshTokenUsageRotate
		r.Scopes = []string{"openid", "offline_access"}
		r.AuthorizationCode = nil
		r.RefreshTokenHandle = handle
	})
	// El perdedor de la carrera recibe access token pero no refresh token.
	resp, err := f.responder.Respond(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Empty(t, resp.RefreshToken)
}

func TestDeviceResponder_Respond(t *testing.T) {
	devices := grants.NewDeviceCodeStore(storage.NewMemoryGrantStore())
	g := NewDeviceResponder(devices, DefaultLifetimes(), "https://op.example.com/device", 5)
	ctx := context.Background()

	resp, err := g.Respond(ctx, &validation.ValidatedDeviceAuthorizationRequest{
		Client:          &domain.Client{ClientID: "cli-app"},
		RequestedScopes: []string{"openid", "api.read"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.DeviceCode)
	require.NotEmpty(t, resp.UserCode)
	require.Equal(t, "https://op.example.com/device", resp.VerificationURI)
	require.Contains(t, resp.VerificationURIComplete, "user_code="+resp.UserCode)
	require.Equal(t, 600, resp.ExpiresIn)
	require.Equal(t, 5, resp.Interval)

	dc, err := devices.FindByUserCode(ctx, resp.UserCode)
	require.NoError(t, err)
	require.NotNil(t, dc)
	require.Equal(t, serialization.DeviceStatusPending, dc.Status)
	require.Equal(t, []string{"openid", "api.read"}, dc.RequestedScopes)
}

func TestDeviceResponder_DefaultInterval(t *testing.T) {
	g := NewDeviceResponder(grants.NewDeviceCodeStore(storage.NewMemoryGrantStore()), DefaultLifetimes(), "", 0)
	require.Equal(t, 5, g.Interval)
}
