package connect

import (
	"net/http"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// DiscoveryController sirve el discovery document y el JWKS.
type DiscoveryController struct {
	Issuer    string
	Keys      *jwt.Keystore
	Resources domain.ResourceStore
}

func NewDiscoveryController(issuer string, keys *jwt.Keystore, resources domain.ResourceStore) *DiscoveryController {
	return &DiscoveryController{Issuer: issuer, Keys: keys, Resources: resources}
}

// Discovery maneja GET /.well-known/openid-configuration.
func (c *DiscoveryController) Discovery(w http.ResponseWriter, r *http.Request) {
	all, err := c.Resources.All(r.Context())
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	scopes := []string{oidc.ScopeOfflineAccess}
	for _, ir := range all.IdentityResources {
		if ir.Enabled {
			scopes = append(scopes, ir.Name)
		}
	}
	for _, as := range all.APIScopes {
		if as.Enabled {
			scopes = append(scopes, as.Name)
		}
	}

	doc := map[string]any{
		"issuer":                                c.Issuer,
		"authorization_endpoint":                c.Issuer + "/connect/authorize",
		"token_endpoint":                        c.Issuer + "/connect/token",
		"device_authorization_endpoint":         c.Issuer + "/connect/deviceauthorization",
		"end_session_endpoint":                  c.Issuer + "/connect/endsession",
		"revocation_endpoint":                   c.Issuer + "/connect/revocation",
		"introspection_endpoint":                c.Issuer + "/connect/introspect",
		"jwks_uri":                              c.Issuer + "/.well-known/jwks",
		"scopes_supported":                      scopes,
		"response_types_supported":              []string{oidc.ResponseTypeCode, oidc.ResponseTypeIDToken, oidc.ResponseTypeCodeIDToken},
		"response_modes_supported":              []string{oidc.ResponseModeQuery, oidc.ResponseModeFragment, oidc.ResponseModeFormPost},
		"grant_types_supported":                 []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeImplicit, oidc.GrantTypeRefreshToken, oidc.GrantTypeClientCredentials, oidc.GrantTypePassword, oidc.GrantTypeDeviceCode},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"code_challenge_methods_supported":      []string{oidc.CodeChallengeMethodS256, oidc.CodeChallengeMethodPlain},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "client_secret_jwt"},
		"token_endpoint_auth_signing_alg_values_supported": []string{"HS256", "HS384", "HS512"},
	}
	writeJSON(w, http.StatusOK, doc)
}

// JWKS maneja GET /.well-known/jwks.
func (c *DiscoveryController) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(c.Keys.JWKSJSON())
}
