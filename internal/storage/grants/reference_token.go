package grants

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// ReferenceTokenStore maneja access tokens opacos (AccessTokenType=reference).
// A diferencia de los codes, un reference token se valida muchas veces
// (introspection) y se elimina solo por revocación o expiración.
type ReferenceTokenStore struct {
	store storage.GrantStore
}

func NewReferenceTokenStore(store storage.GrantStore) *ReferenceTokenStore {
	return &ReferenceTokenStore{store: store}
}

// Issue persiste el token y retorna el handle opaco.
func (s *ReferenceTokenStore) Issue(ctx context.Context, rt *serialization.ReferenceToken, lifetime time.Duration) (string, error) {
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
		Type:         storage.GrantTypeReferenceToken,
		ClientID:     rt.ClientID,
		SubjectID:    rt.SubjectID,
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

// Get resuelve un handle para introspection. (nil, nil) si no es usable.
func (s *ReferenceTokenStore) Get(ctx context.Context, rawToken string) (*serialization.ReferenceToken, error) {
	g, err := s.store.Get(ctx, hashHandle(rawToken))
	if err != nil {
		return nil, err
	}
	if g = usable(g, storage.GrantTypeReferenceToken, time.Now()); g == nil {
		return nil, nil
	}
	var rt serialization.ReferenceToken
	if err := serialization.Deserialize(g.Data, &rt); err != nil {
		logger.From(ctx).Warn("reference token data corrupted", logger.ClientID(g.ClientID))
		return nil, nil
	}
	return &rt, nil
}

// Revoke elimina un handle. Idempotente.
func (s *ReferenceTokenStore) Revoke(ctx context.Context, rawToken string) error {
	return s.store.Remove(ctx, hashHandle(rawToken))
}
