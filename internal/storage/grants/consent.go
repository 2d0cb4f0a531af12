package grants

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// UserConsentStore persiste el consentimiento de un usuario hacia un client.
// La key lógica es clientID|subjectID: un consent por par, upsert reemplaza.
type UserConsentStore struct {
	store storage.GrantStore
}

func NewUserConsentStore(store storage.GrantStore) *UserConsentStore {
	return &UserConsentStore{store: store}
}

func consentKey(clientID, subjectID string) string {
	return tokens.SHA256Base64URL(clientID + "|" + subjectID)
}

// Store guarda (o reemplaza) el consent. lifetime cero significa sin expiración
// práctica: se usa un horizonte lejano para mantener Expiration no nula.
func (s *UserConsentStore) Store(ctx context.Context, consent *serialization.Consent, lifetime time.Duration) error {
	data, err := serialization.Serialize(consent)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	exp := now.Add(lifetime)
	if lifetime <= 0 {
		exp = now.AddDate(100, 0, 0)
	}
	return s.store.Store(ctx, &storage.PersistedGrant{
		Key:          consentKey(consent.ClientID, consent.SubjectID),
		Type:         storage.GrantTypeUserConsent,
		ClientID:     consent.ClientID,
		SubjectID:    consent.SubjectID,
		CreationTime: now,
		Expiration:   exp,
		Data:         data,
	})
}

// Get retorna el consent vigente o (nil, nil).
func (s *UserConsentStore) Get(ctx context.Context, clientID, subjectID string) (*serialization.Consent, error) {
	g, err := s.store.Get(ctx, consentKey(clientID, subjectID))
	if err != nil {
		return nil, err
	}
	if g = usable(g, storage.GrantTypeUserConsent, time.Now()); g == nil {
		return nil, nil
	}
	var c serialization.Consent
	if err := serialization.Deserialize(g.Data, &c); err != nil {
		logger.From(ctx).Warn("consent data corrupted", logger.ClientID(clientID))
		return nil, nil
	}
	return &c, nil
}

// Remove revoca el consent. Idempotente.
func (s *UserConsentStore) Remove(ctx context.Context, clientID, subjectID string) error {
	return s.store.Remove(ctx, consentKey(clientID, subjectID))
}

// Covers indica si el consent almacenado cubre todos los scopes pedidos.
func Covers(consent *serialization.Consent, requested []string) bool {
	if consent == nil {
		return false
	}
	granted := make(map[string]struct{}, len(consent.Scopes))
	for _, s := range consent.Scopes {
		granted[s] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := granted[r]; !ok {
			return false
		}
	}
	return true
}
