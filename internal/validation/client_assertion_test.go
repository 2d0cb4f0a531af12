package validation

import (
	"context"
	"net/url"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const assertionIssuer = "https://op.example.com"

func assertionValidator() *ClientValidator {
	v := NewClientValidator(clientCatalog(), nil)
	v.Assertions = NewClientAssertions(NewJWTBearerAssertion(assertionIssuer))
	return v
}

// mintAssertion firma un client_secret_jwt HS256 como lo haría el client.
func mintAssertion(t *testing.T, clientID, secret, aud string, lifetime time.Duration) string {
	t.Helper()
	claims := jwtv5.MapClaims{
		"iss": clientID,
		"sub": clientID,
		"aud": aud,
		"exp": time.Now().Add(lifetime).Unix(),
		"jti": uuid.NewString(),
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func assertionForm(assertion string) url.Values {
	return url.Values{
		"client_assertion":      {assertion},
		"client_assertion_type": {"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"},
	}
}

func TestClientValidator_Assertion(t *testing.T) {
	v := assertionValidator()
	ctx := context.Background()

	t.Run("valid assertion authenticates without client_id param", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "topsecret", assertionIssuer+"/connect/token", 5*time.Minute))
		client, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.False(t, res.IsError, res.ErrorDescription)
		require.Equal(t, "confidential-app", client.ClientID)
	})

	t.Run("issuer is also an accepted audience", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "topsecret", assertionIssuer, 5*time.Minute))
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.False(t, res.IsError)
	})

	t.Run("assertion signed with wrong secret", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "not-the-secret", assertionIssuer, 5*time.Minute))
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})

	t.Run("assertion signed with expired secret", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "expired", assertionIssuer, 5*time.Minute))
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})

	t.Run("expired assertion", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "topsecret", assertionIssuer, -time.Minute))
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})

	t.Run("wrong audience", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "topsecret", "https://other-op.example.com", 5*time.Minute))
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})

	t.Run("unsupported assertion type", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "topsecret", assertionIssuer, 5*time.Minute))
		form.Set("client_assertion_type", "urn:ietf:params:oauth:client-assertion-type:saml2-bearer")
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})

	t.Run("assertion plus client_secret is rejected", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "confidential-app", "topsecret", assertionIssuer, 5*time.Minute))
		form.Set("client_secret", "topsecret")
		form.Set("client_id", "confidential-app")
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_request", res.Error)
	})

	t.Run("assertion from public client is rejected", func(t *testing.T) {
		form := assertionForm(mintAssertion(t, "spa", "whatever", assertionIssuer, 5*time.Minute))
		_, res, err := v.Validate(ctx, plainRequest(t), form)
		require.NoError(t, err)
		require.True(t, res.IsError)
		require.Equal(t, "invalid_client", res.Error)
	})
}
