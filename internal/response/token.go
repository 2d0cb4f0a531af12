package response

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/janus/internal/audit"
	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/dropDatabas3/janus/internal/validation"
)

// TokenResponse es el body JSON del token endpoint. Los nombres de campo son
// contrato wire.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenResponder acuña los tokens para un token request ya validado.
type TokenResponder struct {
	Issuer    *jwt.Issuer
	RefTokens *grants.ReferenceTokenStore
	Refresh   *grants.RefreshTokenStore
	Lifetimes Lifetimes
	Audit     *audit.Recorder
}

func NewTokenResponder(issuer *jwt.Issuer, refTokens *grants.ReferenceTokenStore, refresh *grants.RefreshTokenStore, lifetimes Lifetimes, rec *audit.Recorder) *TokenResponder {
	return &TokenResponder{Issuer: issuer, RefTokens: refTokens, Refresh: refresh, Lifetimes: lifetimes, Audit: rec}
}

func (g *TokenResponder) Respond(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	now := time.Now().UTC()

	accessToken, expiry, err := g.mintAccessToken(ctx, req, now)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   oidc.TokenTypeBearer,
		ExpiresIn:   ExpiresIn(expiry, now),
		Scope:       strings.Join(req.Scopes, " "),
	}

	refreshToken, err := g.mintRefreshToken(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.RefreshToken = refreshToken

	if req.Subject != nil && hasScope(req.Scopes, oidc.ScopeOpenID) {
		idToken, _, err := g.Issuer.IssueIDToken(jwt.IDTokenInput{
			SubjectID:   req.Subject.SubjectID,
			ClientID:    req.Client.ClientID,
			SessionID:   req.SessionID,
			Nonce:       nonceFor(req),
			AuthTime:    req.Subject.AuthTime,
			AMR:         req.Subject.AMR,
			AccessToken: accessToken,
			Lifetime:    g.Lifetimes.identityToken(req.Client),
		})
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	logger.From(ctx).Info("token issued",
		logger.ClientID(req.Client.ClientID), logger.GrantType(req.GrantType))
	if g.Audit != nil {
		ev := audit.Event{
			Name:     audit.EventTokenIssued,
			ClientID: req.Client.ClientID,
			Detail:   map[string]any{"grant_type": req.GrantType},
		}
		if req.Subject != nil {
			ev.SubjectID = req.Subject.SubjectID
		}
		g.Audit.Record(ctx, ev)
	}
	return resp, nil
}

// mintAccessToken emite JWT o handle de referencia según AccessTokenType.
func (g *TokenResponder) mintAccessToken(ctx context.Context, req *validation.ValidatedTokenRequest, now time.Time) (string, time.Time, error) {
	lifetime := g.Lifetimes.accessToken(req.Client)
	subjectID := ""
	var amr []string
	var claims []serialization.Claim
	if req.Subject != nil {
		subjectID = req.Subject.SubjectID
		amr = req.Subject.AMR
		claims = req.Subject.Claims
	}
	audiences := req.Resources.Audiences()

	if req.Client.AccessTokenType == domain.AccessTokenReference {
		payload := &serialization.ReferenceToken{
			ClientID:  req.Client.ClientID,
			SubjectID: subjectID,
			SessionID: req.SessionID,
			Scopes:    req.Scopes,
			Audiences: audiences,
			Claims:    claims,
			IssuedAt:  now,
			Expiry:    now.Add(lifetime),
		}
		handle, err := g.RefTokens.Issue(ctx, payload, lifetime)
		if err != nil {
			return "", time.Time{}, err
		}
		return handle, payload.Expiry, nil
	}

	return g.Issuer.IssueAccessToken(jwt.AccessTokenInput{
		SubjectID: subjectID,
		ClientID:  req.Client.ClientID,
		SessionID: req.SessionID,
		Scopes:    req.Scopes,
		Audiences: audiences,
		AMR:       amr,
		Lifetime:  lifetime,
	})
}

// mintRefreshToken decide emisión/rotación:
//   - refresh_token grant: rota o reusa según RefreshTokenUsage; la variante
//     sliding corre la expiración del handle reusado.
//   - resto de grants: emite uno nuevo solo si el request pidió offline_access.
func (g *TokenResponder) mintRefreshToken(ctx context.Context, req *validation.ValidatedTokenRequest) (string, error) {
	lifetime := g.Lifetimes.refreshToken(req.Client)

	if req.GrantType == oidc.GrantTypeRefreshToken {
		if req.Client.RefreshTokenUsage == domain.RefreshTokenUsageReuse {
			if req.Client.RefreshTokenExpiration == domain.RefreshTokenExpirationSliding {
				if err := g.Refresh.Extend(ctx, req.RefreshTokenHandle, lifetime); err != nil {
					return "", err
				}
			}
			return req.RefreshTokenHandle, nil
		}
		rotated, _, err := g.Refresh.Rotate(ctx, req.RefreshTokenHandle, lifetime)
		if err != nil {
			return "", err
		}
		if rotated == "" {
			// El handle desapareció entre validación y rotación: carrera con
			// otra rotación concurrente. El perdedor no recibe refresh token.
			logger.From(ctx).Warn("refresh token rotation lost race",
				logger.ClientID(req.Client.ClientID))
			return "", nil
		}
		return rotated, nil
	}

	if req.Subject == nil || !hasScope(req.Scopes, oidc.ScopeOfflineAccess) {
		return "", nil
	}
	payload := &serialization.RefreshToken{
		ClientID:        req.Client.ClientID,
		Subject:         *req.Subject,
		SessionID:       req.SessionID,
		Scopes:          req.Scopes,
		Audiences:       req.Resources.Audiences(),
		AccessTokenType: req.Client.AccessTokenType,
	}
	return g.Refresh.Issue(ctx, payload, lifetime)
}

func nonceFor(req *validation.ValidatedTokenRequest) string {
	if req.AuthorizationCode != nil {
		return req.AuthorizationCode.Nonce
	}
	return ""
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
