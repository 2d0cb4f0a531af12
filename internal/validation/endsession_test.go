package validation

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/domain"
)

// fakeParser devuelve claims fijas para un token mágico y error para el resto.
type fakeParser struct {
	claims map[string]any
}

func (p *fakeParser) ParseNoExpiry(token string) (map[string]any, error) {
	if token == "good-hint" {
		return p.claims, nil
	}
	return nil, errors.New("bad signature")
}

func endSessionCatalog() domain.ClientStore {
	return domain.NewInMemoryClientStore([]domain.Client{{
		ClientID:               "web-app",
		Enabled:                true,
		Type:                   domain.ClientTypeConfidential,
		PostLogoutRedirectURIs: []string{"https://app.example.com/bye"},
	}})
}

func newEndSessionValidator(claims map[string]any) *EndSessionValidator {
	return NewEndSessionValidator(endSessionCatalog(), &fakeParser{claims: claims})
}

func TestEndSessionValidator_NoHint(t *testing.T) {
	v := newEndSessionValidator(nil)

	res, err := v.Validate(context.Background(), url.Values{"state": {"s1"}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Nil(t, res.Request.Client)
	require.Equal(t, "s1", res.Request.State)
	require.Empty(t, res.Request.PostLogoutRedirectURI)
}

func TestEndSessionValidator_ValidHint(t *testing.T) {
	v := newEndSessionValidator(map[string]any{
		"sub": "user-1",
		"sid": "sid-9",
		"aud": "web-app",
	})

	res, err := v.Validate(context.Background(), url.Values{"id_token_hint": {"good-hint"}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "user-1", res.Request.SubjectID)
	require.Equal(t, "sid-9", res.Request.SessionID)
	require.Equal(t, "web-app", res.Request.Client.ClientID)
}

func TestEndSessionValidator_AudAsArray(t *testing.T) {
	v := newEndSessionValidator(map[string]any{
		"sub": "user-1",
		"aud": []any{"web-app", "other"},
	})

	res, err := v.Validate(context.Background(), url.Values{"id_token_hint": {"good-hint"}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "web-app", res.Request.Client.ClientID)
}

func TestEndSessionValidator_UnverifiableHint(t *testing.T) {
	v := newEndSessionValidator(nil)

	res, err := v.Validate(context.Background(), url.Values{"id_token_hint": {"forged"}})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, "invalid_request", res.Error)
}

func TestEndSessionValidator_PostLogoutRedirect(t *testing.T) {
	claims := map[string]any{"sub": "user-1", "aud": "web-app"}

	t.Run("requires a verified hint", func(t *testing.T) {
		v := newEndSessionValidator(claims)
		res, err := v.Validate(context.Background(), url.Values{
			"post_logout_redirect_uri": {"https://app.example.com/bye"},
		})
		require.NoError(t, err)
		require.True(t, res.IsError)
	})

	t.Run("registered uri accepted", func(t *testing.T) {
		v := newEndSessionValidator(claims)
		res, err := v.Validate(context.Background(), url.Values{
			"id_token_hint":            {"good-hint"},
			"post_logout_redirect_uri": {"https://app.example.com/bye"},
			"state":                    {"s1"},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		require.Equal(t, "https://app.example.com/bye", res.Request.PostLogoutRedirectURI)
	})

	t.Run("unregistered uri rejected", func(t *testing.T) {
		v := newEndSessionValidator(claims)
		res, err := v.Validate(context.Background(), url.Values{
			"id_token_hint":            {"good-hint"},
			"post_logout_redirect_uri": {"https://evil.example.com/bye"},
		})
		require.NoError(t, err)
		require.True(t, res.IsError)
	})
}

func TestEndSessionValidator_ExplicitSIDWins(t *testing.T) {
	// Un sid explícito en el request no se pisa con el del hint.
	v := newEndSessionValidator(map[string]any{"sub": "user-1", "sid": "from-hint", "aud": "web-app"})

	res, err := v.Validate(context.Background(), url.Values{
		"id_token_hint": {"good-hint"},
		"sid":           {"explicit"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "explicit", res.Request.SessionID)
}
