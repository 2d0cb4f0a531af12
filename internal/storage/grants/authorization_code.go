package grants

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// AuthorizationCodeStore emite y redime authorization codes single-use.
type AuthorizationCodeStore struct {
	store storage.GrantStore
}

func NewAuthorizationCodeStore(store storage.GrantStore) *AuthorizationCodeStore {
	return &AuthorizationCodeStore{store: store}
}

// Issue persiste el código y retorna el handle crudo que viaja al client.
func (s *AuthorizationCodeStore) Issue(ctx context.Context, code *serialization.AuthorizationCode, lifetime time.Duration) (string, error) {
	raw, hashed, err := newHandle()
	if err != nil {
		return "", err
	}
	data, err := serialization.Serialize(code)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	grant := &storage.PersistedGrant{
		Key:          hashed,
		Type:         storage.GrantTypeAuthorizationCode,
		ClientID:     code.ClientID,
		SubjectID:    code.Subject.SubjectID,
		SessionID:    code.SessionID,
		CreationTime: now,
		Expiration:   now.Add(lifetime),
		Data:         data,
	}
	if err := s.store.Store(ctx, grant); err != nil {
		return "", err
	}
	return raw, nil
}

// Redeem consume el código: Take atómico, así dos redenciones concurrentes
// del mismo handle dejan exactamente una ganadora. Retorna (nil, nil) para
// handles desconocidos, vencidos o corruptos: todos colapsan a invalid_grant.
func (s *AuthorizationCodeStore) Redeem(ctx context.Context, rawCode string) (*serialization.AuthorizationCode, error) {
	g, err := s.store.Take(ctx, hashHandle(rawCode))
	if err != nil {
		return nil, err
	}
	if g = usable(g, storage.GrantTypeAuthorizationCode, time.Now()); g == nil {
		return nil, nil
	}
	var code serialization.AuthorizationCode
	if err := serialization.Deserialize(g.Data, &code); err != nil {
		logger.From(ctx).Warn("authorization code data corrupted", logger.ClientID(g.ClientID))
		return nil, nil
	}
	return &code, nil
}
