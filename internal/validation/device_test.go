package validation

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceAuthorizationValidator_Validate(t *testing.T) {
	v := NewDeviceAuthorizationValidator(
		NewClientValidator(tokenCatalog(), nil),
		NewScopeValidator(testResources(), nil),
	)
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		res, err := v.Validate(ctx, plainRequest(t), webAppForm(url.Values{
			"scope": {"openid api.read"},
		}))
		require.NoError(t, err)
		require.False(t, res.IsError, res.ErrorDescription)
		require.Equal(t, "web-app", res.Request.Client.ClientID)
		require.Equal(t, []string{"openid", "api.read"}, res.Request.RequestedScopes)
		require.True(t, res.Request.IsOpenID)
	})

	t.Run("grant type not allowed", func(t *testing.T) {
		res, err := v.Validate(ctx, plainRequest(t), url.Values{
			"client_id": {"spa"},
			"scope":     {"api.read"},
		})
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "unauthorized_client", res.Error)
	})

	t.Run("invalid scope", func(t *testing.T) {
		res, err := v.Validate(ctx, plainRequest(t), webAppForm(url.Values{
			"scope": {"nope"},
		}))
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_scope", res.Error)
	})

	t.Run("unauthenticated client", func(t *testing.T) {
		res, err := v.Validate(ctx, plainRequest(t), url.Values{
			"client_id":     {"web-app"},
			"client_secret": {"wrong"},
			"scope":         {"api.read"},
		})
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})
}
