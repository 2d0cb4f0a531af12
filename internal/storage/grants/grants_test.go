package grants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

func subjectFixture() serialization.Subject {
	return serialization.Subject{
		SubjectID: "user-1",
		AuthTime:  time.Now().UTC().Truncate(time.Second),
		AMR:       []string{"pwd"},
	}
}

func TestAuthorizationCodeStore_IssueStoresHashedKey(t *testing.T) {
	mem := storage.NewMemoryGrantStore()
	s := NewAuthorizationCodeStore(mem)
	ctx := context.Background()

	raw, err := s.Issue(ctx, &serialization.AuthorizationCode{
		ClientID:        "web-app",
		Subject:         subjectFixture(),
		RedirectURI:     "https://app.example.com/cb",
		RequestedScopes: []string{"openid"},
	}, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	// El handle crudo nunca es la key: el store solo conoce el hash.
	g, err := mem.Get(ctx, raw)
	require.NoError(t, err)
	require.Nil(t, g)

	g, err = mem.Get(ctx, tokens.SHA256Base64URL(raw))
	require.NoError(t, err)
	require.NotNil(t, g)
	require.Equal(t, storage.GrantTypeAuthorizationCode, g.Type)
	require.Equal(t, "web-app", g.ClientID)
	require.Equal(t, "user-1", g.SubjectID)
}

func TestAuthorizationCodeStore_RedeemIsSingleUse(t *testing.T) {
	s := NewAuthorizationCodeStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	raw, err := s.Issue(ctx, &serialization.AuthorizationCode{
		ClientID:        "web-app",
		Subject:         subjectFixture(),
		RedirectURI:     "https://app.example.com/cb",
		RequestedScopes: []string{"openid", "profile"},
		Nonce:           "n-1",
	}, 5*time.Minute)
	require.NoError(t, err)

	code, err := s.Redeem(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, code)
	require.Equal(t, "web-app", code.ClientID)
	require.Equal(t, "n-1", code.Nonce)
	require.Equal(t, []string{"openid", "profile"}, code.RequestedScopes)

	code, err = s.Redeem(ctx, raw)
	require.NoError(t, err)
	require.Nil(t, code)
}

func TestAuthorizationCodeStore_RedeemExpired(t *testing.T) {
	s := NewAuthorizationCodeStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	raw, err := s.Issue(ctx, &serialization.AuthorizationCode{
		ClientID:    "web-app",
		Subject:     subjectFixture(),
		RedirectURI: "https://app.example.com/cb",
	}, -time.Minute)
	require.NoError(t, err)

	code, err := s.Redeem(ctx, raw)
	require.NoError(t, err)
	require.Nil(t, code)
}

func TestRefreshTokenStore_RotateInvalidatesOldHandle(t *testing.T) {
	s := NewRefreshTokenStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	old, err := s.Issue(ctx, &serialization.RefreshToken{
		ClientID: "web-app",
		Subject:  subjectFixture(),
		Scopes:   []string{"openid", "offline_access"},
	}, time.Hour)
	require.NoError(t, err)

	fresh, rt, err := s.Rotate(ctx, old, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, rt)
	require.NotEqual(t, old, fresh)
	require.Equal(t, []string{"openid", "offline_access"}, rt.Scopes)

	// El handle viejo queda muerto; el nuevo resuelve.
	got, err := s.Get(ctx, old)
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = s.Get(ctx, fresh)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "user-1", got.Subject.SubjectID)

	// Segunda rotación del handle ya consumido: (nil, nil), reuse detectado.
	fresh2, rt2, err := s.Rotate(ctx, old, time.Hour)
	require.NoError(t, err)
	require.Empty(t, fresh2)
	require.Nil(t, rt2)
}

func TestRefreshTokenStore_Extend(t *testing.T) {
	mem := storage.NewMemoryGrantStore()
	s := NewRefreshTokenStore(mem)
	ctx := context.Background()

	raw, err := s.Issue(ctx, &serialization.RefreshToken{
		ClientID: "web-app",
		Subject:  subjectFixture(),
		Scopes:   []string{"openid"},
	}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Extend(ctx, raw, 24*time.Hour))

	g, err := mem.Get(ctx, tokens.SHA256Base64URL(raw))
	require.NoError(t, err)
	require.NotNil(t, g)
	require.True(t, g.Expiration.After(time.Now().Add(23*time.Hour)))

	// Extend sobre un handle desconocido es no-op, no error.
	require.NoError(t, s.Extend(ctx, "nope", time.Hour))
}

func TestRefreshTokenStore_RevokeIsIdempotent(t *testing.T) {
	s := NewRefreshTokenStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	raw, err := s.Issue(ctx, &serialization.RefreshToken{
		ClientID: "web-app",
		Subject:  subjectFixture(),
		Scopes:   []string{"openid"},
	}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, raw))
	got, err := s.Get(ctx, raw)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, s.Revoke(ctx, raw))
}

func TestReferenceTokenStore_GetDoesNotConsume(t *testing.T) {
	s := NewReferenceTokenStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	now := time.Now().UTC()
	raw, err := s.Issue(ctx, &serialization.ReferenceToken{
		ClientID:  "web-app",
		SubjectID: "user-1",
		Scopes:    []string{"api.read"},
		Audiences: []string{"inventory-api"},
		IssuedAt:  now,
		Expiry:    now.Add(time.Hour),
	}, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rt, err := s.Get(ctx, raw)
		require.NoError(t, err)
		require.NotNil(t, rt)
		require.Equal(t, []string{"inventory-api"}, rt.Audiences)
	}

	require.NoError(t, s.Revoke(ctx, raw))
	rt, err := s.Get(ctx, raw)
	require.NoError(t, err)
	require.Nil(t, rt)
}

func TestDeviceCodeStore_Lifecycle(t *testing.T) {
	mem := storage.NewMemoryGrantStore()
	s := NewDeviceCodeStore(mem)
	ctx := context.Background()

	deviceCode, userCode, err := s.Issue(ctx, &serialization.DeviceCode{
		ClientID:        "cli-app",
		RequestedScopes: []string{"openid", "api.read"},
		Interval:        5,
	}, 10*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, deviceCode)
	require.NotEmpty(t, userCode)

	// Pending hasta que el usuario decida.
	dc, err := s.Peek(ctx, deviceCode)
	require.NoError(t, err)
	require.NotNil(t, dc)
	require.Equal(t, serialization.DeviceStatusPending, dc.Status)
	require.Equal(t, userCode, dc.UserCode)

	// El user_code resuelve al mismo flujo.
	dc, err = s.FindByUserCode(ctx, userCode)
	require.NoError(t, err)
	require.NotNil(t, dc)
	require.Equal(t, "cli-app", dc.ClientID)

	sub := subjectFixture()
	require.NoError(t, s.Approve(ctx, userCode, &sub, []string{"openid"}))

	dc, err = s.Peek(ctx, deviceCode)
	require.NoError(t, err)
	require.Equal(t, serialization.DeviceStatusAuthorized, dc.Status)
	require.NotNil(t, dc.Subject)
	require.Equal(t, "user-1", dc.Subject.SubjectID)
	require.Equal(t, []string{"openid"}, dc.AuthorizedScopes)

	// Redeem consume el grant y limpia el lookup del user_code.
	dc, err = s.Redeem(ctx, deviceCode)
	require.NoError(t, err)
	require.NotNil(t, dc)

	dc, err = s.Redeem(ctx, deviceCode)
	require.NoError(t, err)
	require.Nil(t, dc)
	dc, err = s.FindByUserCode(ctx, userCode)
	require.NoError(t, err)
	require.Nil(t, dc)
}

func TestDeviceCodeStore_Deny(t *testing.T) {
	s := NewDeviceCodeStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	deviceCode, userCode, err := s.Issue(ctx, &serialization.DeviceCode{
		ClientID:        "cli-app",
		RequestedScopes: []string{"openid"},
	}, 10*time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Deny(ctx, userCode))

	dc, err := s.Peek(ctx, deviceCode)
	require.NoError(t, err)
	require.Equal(t, serialization.DeviceStatusDenied, dc.Status)
	require.Nil(t, dc.Subject)
}

func TestDeviceCodeStore_StateDistinguishesExpired(t *testing.T) {
	s := NewDeviceCodeStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	deviceCode, _, err := s.Issue(ctx, &serialization.DeviceCode{
		ClientID:        "cli-app",
		RequestedScopes: []string{"openid"},
	}, -time.Minute)
	require.NoError(t, err)

	// Peek filtra por expiración; State no, para poder reportar expired_token.
	dc, err := s.Peek(ctx, deviceCode)
	require.NoError(t, err)
	require.Nil(t, dc)

	dc, expired, err := s.State(ctx, deviceCode)
	require.NoError(t, err)
	require.NotNil(t, dc)
	require.True(t, expired)

	_, expired, err = s.State(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, expired)
}

func TestDeviceCodeStore_RemoveCleansLookup(t *testing.T) {
	s := NewDeviceCodeStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	deviceCode, userCode, err := s.Issue(ctx, &serialization.DeviceCode{
		ClientID:        "cli-app",
		RequestedScopes: []string{"openid"},
	}, 10*time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, deviceCode))

	dc, err := s.Peek(ctx, deviceCode)
	require.NoError(t, err)
	require.Nil(t, dc)
	dc, err = s.FindByUserCode(ctx, userCode)
	require.NoError(t, err)
	require.Nil(t, dc)
}

func TestUserConsentStore_UpsertAndCovers(t *testing.T) {
	s := NewUserConsentStore(storage.NewMemoryGrantStore())
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, &serialization.Consent{
		SubjectID: "user-1",
		ClientID:  "web-app",
		Scopes:    []string{"openid"},
	}, 0))

	c, err := s.Get(ctx, "web-app", "user-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.True(t, Covers(c, []string{"openid"}))
	require.False(t, Covers(c, []string{"openid", "profile"}))

	// Upsert reemplaza el consent anterior del mismo par client/subject.
	require.NoError(t, s.Store(ctx, &serialization.Consent{
		SubjectID: "user-1",
		ClientID:  "web-app",
		Scopes:    []string{"openid", "profile", "api.read"},
	}, time.Hour))

	c, err = s.Get(ctx, "web-app", "user-1")
	require.NoError(t, err)
	require.True(t, Covers(c, []string{"openid", "profile"}))

	// Otro par no se ve afectado.
	c, err = s.Get(ctx, "other-app", "user-1")
	require.NoError(t, err)
	require.Nil(t, c)
	require.False(t, Covers(nil, []string{"openid"}))

	require.NoError(t, s.Remove(ctx, "web-app", "user-1"))
	c, err = s.Get(ctx, "web-app", "user-1")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestSweeperRemovesOnlyExpired(t *testing.T) {
	mem := storage.NewMemoryGrantStore()
	codes := NewAuthorizationCodeStore(mem)
	ctx := context.Background()

	live, err := codes.Issue(ctx, &serialization.AuthorizationCode{
		ClientID:    "web-app",
		Subject:     subjectFixture(),
		RedirectURI: "https://app.example.com/cb",
	}, time.Hour)
	require.NoError(t, err)
	_, err = codes.Issue(ctx, &serialization.AuthorizationCode{
		ClientID:    "web-app",
		Subject:     subjectFixture(),
		RedirectURI: "https://app.example.com/cb",
	}, -time.Minute)
	require.NoError(t, err)

	n, err := mem.RemoveExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	code, err := codes.Redeem(ctx, live)
	require.NoError(t, err)
	require.NotNil(t, code)
}
