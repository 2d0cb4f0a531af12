package grants

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// RefreshTokenStore maneja refresh tokens: emisión, resolución y rotación.
type RefreshTokenStore struct {
	store storage.GrantStore
}

func NewRefreshTokenStore(store storage.GrantStore) *RefreshTokenStore {
	return &RefreshTokenStore{store: store}
}

// Issue persiste un refresh token nuevo y retorna el handle crudo.
func (s *RefreshTokenStore) Issue(ctx context.Context, rt *serialization.RefreshToken, lifetime time.Duration) (string, error) {
	raw, hashed, err := newHandle()
	if err != nil {
		return "", err
	}
	data, err := serialization.Serialize(rt)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	grant := &storage.PersistedGrant{
		Key:          hashed,
		Type:         storage.GrantTypeRefreshToken,
		ClientID:     rt.ClientID,
		SubjectID:    rt.Subject.SubjectID,
		SessionID:    rt.SessionID,
		CreationTime: now,
		Expiration:   now.Add(lifetime),
		Data:         data,
	}
	if err := s.store.Store(ctx, grant); err != nil {
		return "", err
	}
	return raw, nil
}

// Get resuelve un handle sin consumirlo. (nil, nil) si no es usable.
func (s *RefreshTokenStore) Get(ctx context.Context, rawToken string) (*serialization.RefreshToken, error) {
	g, err := s.store.Get(ctx, hashHandle(rawToken))
	if err != nil {
		return nil, err
	}
	if g = usable(g, storage.GrantTypeRefreshToken, time.Now()); g == nil {
		return nil, nil
	}
	var rt serialization.RefreshToken
	if err := serialization.Deserialize(g.Data, &rt); err != nil {
		logger.From(ctx).Warn("refresh token data corrupted", logger.ClientID(g.ClientID))
		return nil, nil
	}
	return &rt, nil
}

// Rotate invalida el handle viejo y emite uno nuevo con el mismo payload.
// El Take del viejo es atómico: dos rotaciones concurrentes del mismo handle
// producen un solo token nuevo.
func (s *RefreshTokenStore) Rotate(ctx context.Context, oldRawToken string, lifetime time.Duration) (string, *serialization.RefreshToken, error) {
	g, err := s.store.Take(ctx, hashHandle(oldRawToken))
	if err != nil {
		return "", nil, err
	}
	if g = usable(g, storage.GrantTypeRefreshToken, time.Now()); g == nil {
		return "", nil, nil
	}
	var rt serialization.RefreshToken
	if err := serialization.Deserialize(g.Data, &rt); err != nil {
		return "", nil, nil
	}
	raw, err := s.Issue(ctx, &rt, lifetime)
	if err != nil {
		return "", nil, err
	}
	return raw, &rt, nil
}

// Extend corre la expiración de un handle existente (sliding expiration).
func (s *RefreshTokenStore) Extend(ctx context.Context, rawToken string, lifetime time.Duration) error {
	key := hashHandle(rawToken)
	g, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if g = usable(g, storage.GrantTypeRefreshToken, time.Now()); g == nil {
		return nil
	}
	g.Expiration = time.Now().UTC().Add(lifetime)
	return s.store.Store(ctx, g)
}

// Revoke elimina un handle. Idempotente.
func (s *RefreshTokenStore) Revoke(ctx context.Context, rawToken string) error {
	return s.store.Remove(ctx, hashHandle(rawToken))
}
