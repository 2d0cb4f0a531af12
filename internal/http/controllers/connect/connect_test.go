package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/response"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/dropDatabas3/janus/internal/validation"
)

type endpointFixture struct {
	token      *TokenController
	introspect *IntrospectController
	revoke     *RevokeController
	discovery  *DiscoveryController
	issuer     *jwt.Issuer
	refTokens  *grants.ReferenceTokenStore
	refresh    *grants.RefreshTokenStore
}

func newEndpointFixture(t *testing.T) *endpointFixture {
	t.Helper()

	clients := domain.NewInMemoryClientStore([]domain.Client{
		{
			ClientID:          "m2m-app",
			Enabled:           true,
			Type:              domain.ClientTypeConfidential,
			Secrets:           []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: "s3cret"}},
			AllowedGrantTypes: []string{"client_credentials"},
			AllowedScopes:     []string{"api.read"},
			AccessTokenType:   domain.AccessTokenJWT,
		},
		{
			ClientID:          "other-app",
			Enabled:           true,
			Type:              domain.ClientTypeConfidential,
			Secrets:           []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: "other-secret"}},
			AllowedGrantTypes: []string{"client_credentials"},
			AllowedScopes:     []string{"api.read"},
		},
	})
	resources := domain.NewInMemoryResourceStore(
		[]domain.IdentityResource{{Name: "openid", Enabled: true}},
		[]domain.APIScope{{Name: "api.read", Enabled: true}},
		[]domain.APIResource{
			{
				Name: "inventory-api", Enabled: true, Scopes: []string{"api.read"},
				Secrets: []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: "inv-secret"}},
			},
			{
				Name: "billing-api", Enabled: true,
				Secrets: []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: "bill-secret"}},
			},
		},
	)

	keystore, err := jwt.NewKeystore()
	require.NoError(t, err)
	issuer := jwt.NewIssuer("https://op.example.com", keystore)

	mem := storage.NewMemoryGrantStore()
	refTokens := grants.NewReferenceTokenStore(mem)
	refresh := grants.NewRefreshTokenStore(mem)

	clientValidator := validation.NewClientValidator(clients, nil)
	clientValidator.Assertions = validation.NewClientAssertions(
		validation.NewJWTBearerAssertion("https://op.example.com"))
	scopeValidator := validation.NewScopeValidator(resources, nil)
	tokenValidator := &validation.TokenValidator{
		Clients:    clientValidator,
		Scopes:     scopeValidator,
		Codes:      grants.NewAuthorizationCodeStore(mem),
		Refresh:    refresh,
		Devices:    grants.NewDeviceCodeStore(mem),
		Extensions: validation.NewExtensionGrants(),
	}
	introspectionValidator := validation.NewIntrospectionValidator(clientValidator, resources)

	responder := response.NewTokenResponder(issuer, refTokens, refresh, response.DefaultLifetimes(), nil)

	return &endpointFixture{
		token:      NewTokenController(tokenValidator, responder),
		introspect: NewIntrospectController(introspectionValidator, refTokens, refresh),
		revoke:     NewRevokeController(introspectionValidator, refTokens, refresh, nil),
		discovery:  NewDiscoveryController("https://op.example.com", keystore, resources),
		issuer:     issuer,
		refTokens:  refTokens,
		refresh:    refresh,
	}
}

func postForm(handler http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/connect/x", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestTokenEndpoint_ClientCredentials(t *testing.T) {
	f := newEndpointFixture(t)

	rec := postForm(f.token.Token, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"m2m-app"},
		"client_secret": {"s3cret"},
		"scope":         {"api.read"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
	}
	decodeJSON(t, rec, &body)
	require.Equal(t, "Bearer", body.TokenType)
	require.Equal(t, "api.read", body.Scope)
	require.Empty(t, body.RefreshToken)
	require.Positive(t, body.ExpiresIn)

	claims, err := f.issuer.Parse(body.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "m2m-app", claims["sub"])
	require.Equal(t, "inventory-api", claims["aud"])
}

func TestTokenEndpoint_ClientAssertion(t *testing.T) {
	f := newEndpointFixture(t)

	// client_secret_jwt: el client firma su propia identidad con HS256.
	mint := func(secret string) string {
		claims := jwtv5.MapClaims{
			"iss": "m2m-app",
			"sub": "m2m-app",
			"aud": "https://op.example.com/connect/token",
			"exp": time.Now().Add(2 * time.Minute).Unix(),
		}
		signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	rec := postForm(f.token.Token, url.Values{
		"grant_type":            {"client_credentials"},
		"scope":                 {"api.read"},
		"client_assertion":      {mint("s3cret")},
		"client_assertion_type": {"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, rec, &body)
	claims, err := f.issuer.Parse(body.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "m2m-app", claims["sub"])

	// Assertion firmada con otro secret: 401.
	rec = postForm(f.token.Token, url.Values{
		"grant_type":            {"client_credentials"},
		"scope":                 {"api.read"},
		"client_assertion":      {mint("not-the-secret")},
		"client_assertion_type": {"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenEndpoint_InvalidClientIs401(t *testing.T) {
	f := newEndpointFixture(t)

	rec := postForm(f.token.Token, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"m2m-app"},
		"client_secret": {"wrong"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rec, &body)
	require.Equal(t, "invalid_client", body.Error)
}

func TestTokenEndpoint_RejectsGet(t *testing.T) {
	f := newEndpointFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/connect/token", nil)
	rec := httptest.NewRecorder()
	f.token.Token(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestIntrospectEndpoint_OwnerOnly(t *testing.T) {
	f := newEndpointFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	handle, err := f.refTokens.Issue(ctx, &serialization.ReferenceToken{
		ClientID:  "m2m-app",
		SubjectID: "user-1",
		Scopes:    []string{"api.read"},
		IssuedAt:  now,
		Expiry:    now.Add(time.Hour),
	}, time.Hour)
	require.NoError(t, err)

	var body struct {
		Active   bool   `json:"active"`
		Scope    string `json:"scope"`
		ClientID string `json:"client_id"`
		Sub      string `json:"sub"`
	}

	// El dueño lo ve activo.
	rec := postForm(f.introspect.Introspect, url.Values{
		"client_id":     {"m2m-app"},
		"client_secret": {"s3cret"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &body)
	require.True(t, body.Active)
	require.Equal(t, "api.read", body.Scope)
	require.Equal(t, "user-1", body.Sub)

	// Otro client autenticado recibe active=false, nunca un error.
	rec = postForm(f.introspect.Introspect, url.Values{
		"client_id":     {"other-app"},
		"client_secret": {"other-secret"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body.Active = true
	decodeJSON(t, rec, &body)
	require.False(t, body.Active)
}

func TestIntrospectEndpoint_ResourceCaller(t *testing.T) {
	f := newEndpointFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	handle, err := f.refTokens.Issue(ctx, &serialization.ReferenceToken{
		ClientID:  "m2m-app",
		SubjectID: "user-1",
		Scopes:    []string{"api.read"},
		Audiences: []string{"inventory-api"},
		IssuedAt:  now,
		Expiry:    now.Add(time.Hour),
	}, time.Hour)
	require.NoError(t, err)

	var body struct {
		Active   bool   `json:"active"`
		Scope    string `json:"scope"`
		ClientID string `json:"client_id"`
		Sub      string `json:"sub"`
	}

	// El resource server de la audiencia ve el token activo.
	rec := postForm(f.introspect.Introspect, url.Values{
		"client_id":     {"inventory-api"},
		"client_secret": {"inv-secret"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &body)
	require.True(t, body.Active)
	require.Equal(t, "api.read", body.Scope)
	require.Equal(t, "m2m-app", body.ClientID)
	require.Equal(t, "user-1", body.Sub)

	// Un resource fuera de la audiencia recibe active=false.
	rec = postForm(f.introspect.Introspect, url.Values{
		"client_id":     {"billing-api"},
		"client_secret": {"bill-secret"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body.Active = true
	decodeJSON(t, rec, &body)
	require.False(t, body.Active)

	// Secret equivocado del resource: invalid_client, no active=false.
	rec = postForm(f.introspect.Introspect, url.Values{
		"client_id":     {"inventory-api"},
		"client_secret": {"wrong"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntrospectEndpoint_ResourceNeverSeesRefreshTokens(t *testing.T) {
	f := newEndpointFixture(t)
	ctx := context.Background()

	handle, err := f.refresh.Issue(ctx, &serialization.RefreshToken{
		ClientID:  "m2m-app",
		Subject:   serialization.Subject{SubjectID: "user-1"},
		Scopes:    []string{"api.read"},
		Audiences: []string{"inventory-api"},
	}, time.Hour)
	require.NoError(t, err)

	rec := postForm(f.introspect.Introspect, url.Values{
		"client_id":       {"inventory-api"},
		"client_secret":   {"inv-secret"},
		"token":           {handle},
		"token_type_hint": {"refresh_token"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Active bool `json:"active"`
	}
	body.Active = true
	decodeJSON(t, rec, &body)
	require.False(t, body.Active)
}

func TestRevokeEndpoint_ResourceCallerIsNoop(t *testing.T) {
	f := newEndpointFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	handle, err := f.refTokens.Issue(ctx, &serialization.ReferenceToken{
		ClientID:  "m2m-app",
		Scopes:    []string{"api.read"},
		Audiences: []string{"inventory-api"},
		IssuedAt:  now,
		Expiry:    now.Add(time.Hour),
	}, time.Hour)
	require.NoError(t, err)

	rec := postForm(f.revoke.Revoke, url.Values{
		"client_id":     {"inventory-api"},
		"client_secret": {"inv-secret"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Revocation es client-facing: el token sigue vivo.
	rt, err := f.refTokens.Get(ctx, handle)
	require.NoError(t, err)
	require.NotNil(t, rt)
}

func TestRevokeEndpoint_Always200(t *testing.T) {
	f := newEndpointFixture(t)
	ctx := context.Background()

	handle, err := f.refresh.Issue(ctx, &serialization.RefreshToken{
		ClientID: "m2m-app",
		Subject:  serialization.Subject{SubjectID: "user-1"},
		Scopes:   []string{"api.read"},
	}, time.Hour)
	require.NoError(t, err)

	rec := postForm(f.revoke.Revoke, url.Values{
		"client_id":       {"m2m-app"},
		"client_secret":   {"s3cret"},
		"token":           {handle},
		"token_type_hint": {"refresh_token"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rt, err := f.refresh.Get(ctx, handle)
	require.NoError(t, err)
	require.Nil(t, rt)

	// Token desconocido: también 200 (RFC 7009 §2.2).
	rec = postForm(f.revoke.Revoke, url.Values{
		"client_id":     {"m2m-app"},
		"client_secret": {"s3cret"},
		"token":         {"ghost"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRevokeEndpoint_ForeignTokenIsNoop(t *testing.T) {
	f := newEndpointFixture(t)
	ctx := context.Background()

	handle, err := f.refresh.Issue(ctx, &serialization.RefreshToken{
		ClientID: "m2m-app",
		Subject:  serialization.Subject{SubjectID: "user-1"},
		Scopes:   []string{"api.read"},
	}, time.Hour)
	require.NoError(t, err)

	rec := postForm(f.revoke.Revoke, url.Values{
		"client_id":     {"other-app"},
		"client_secret": {"other-secret"},
		"token":         {handle},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// El token del dueño sobrevive.
	rt, err := f.refresh.Get(ctx, handle)
	require.NoError(t, err)
	require.NotNil(t, rt)
}

func TestDiscoveryDocument(t *testing.T) {
	f := newEndpointFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()
	f.discovery.Discovery(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Issuer            string   `json:"issuer"`
		TokenEndpoint     string   `json:"token_endpoint"`
		AuthorizeEndpoint string   `json:"authorization_endpoint"`
		JWKSURI           string   `json:"jwks_uri"`
		Scopes            []string `json:"scopes_supported"`
		ResponseTypes     []string `json:"response_types_supported"`
		IDTokenAlgs       []string `json:"id_token_signing_alg_values_supported"`
		AuthMethods       []string `json:"token_endpoint_auth_methods_supported"`
	}
	decodeJSON(t, rec, &doc)
	require.Equal(t, "https://op.example.com", doc.Issuer)
	require.Equal(t, "https://op.example.com/connect/token", doc.TokenEndpoint)
	require.Equal(t, "https://op.example.com/connect/authorize", doc.AuthorizeEndpoint)
	require.Equal(t, "https://op.example.com/.well-known/jwks", doc.JWKSURI)
	require.Contains(t, doc.Scopes, "openid")
	require.Contains(t, doc.Scopes, "api.read")
	require.Contains(t, doc.Scopes, "offline_access")
	require.Equal(t, []string{"code", "id_token", "code id_token"}, doc.ResponseTypes)
	require.Equal(t, []string{"EdDSA"}, doc.IDTokenAlgs)
	require.Contains(t, doc.AuthMethods, "client_secret_basic")
	require.Contains(t, doc.AuthMethods, "client_secret_post")
	require.Contains(t, doc.AuthMethods, "client_secret_jwt")
}

func TestJWKSEndpoint(t *testing.T) {
	f := newEndpointFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks", nil)
	rec := httptest.NewRecorder()
	f.discovery.JWKS(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Crv string `json:"crv"`
		} `json:"keys"`
	}
	decodeJSON(t, rec, &doc)
	require.Len(t, doc.Keys, 1)
	require.Equal(t, "OKP", doc.Keys[0].Kty)
	require.Equal(t, "Ed25519", doc.Keys[0].Crv)
}
