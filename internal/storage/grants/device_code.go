package grants

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// DeviceCodeStore maneja el device authorization grant (RFC 8628).
//
// Se persisten dos registros por flujo: el grant principal keyed por el
// device_code (lo que pollea el dispositivo) y un registro de lookup keyed por
// el user_code (lo que teclea el usuario), cuyo Data apunta a la key principal.
type DeviceCodeStore struct {
	store storage.GrantStore
}

func NewDeviceCodeStore(store storage.GrantStore) *DeviceCodeStore {
	return &DeviceCodeStore{store: store}
}

func userCodeKey(userCode string) string {
	return tokens.SHA256Base64URL("uc|" + userCode)
}

// Issue crea el par device_code/user_code y retorna ambos handles crudos.
func (s *DeviceCodeStore) Issue(ctx context.Context, dc *serialization.DeviceCode, lifetime time.Duration) (deviceCode, userCode string, err error) {
	raw, hashed, err := newHandle()
	if err != nil {
		return "", "", err
	}
	uc, err := tokens.GenerateUserCode()
	if err != nil {
		return "", "", err
	}
	dc.UserCode = uc
	dc.Status = serialization.DeviceStatusPending

	data, err := serialization.Serialize(dc)
	if err != nil {
		return "", "", err
	}
	now := time.Now().UTC()
	main := &storage.PersistedGrant{
		Key:          hashed,
		Type:         storage.GrantTypeDeviceCode,
		ClientID:     dc.ClientID,
		CreationTime: now,
		Expiration:   now.Add(lifetime),
		Data:         data,
	}
	if err := s.store.Store(ctx, main); err != nil {
		return "", "", err
	}
	lookup := &storage.PersistedGrant{
		Key:          userCodeKey(uc),
		Type:         storage.GrantTypeDeviceCode,
		ClientID:     dc.ClientID,
		CreationTime: now,
		Expiration:   now.Add(lifetime),
		Data:         hashed, // referencia a la key principal, no payload
	}
	if err := s.store.Store(ctx, lookup); err != nil {
		return "", "", err
	}
	return raw, uc, nil
}

// Peek resuelve el device_code sin consumirlo (para polls pending/denied).
func (s *DeviceCodeStore) Peek(ctx context.Context, rawDeviceCode string) (*serialization.DeviceCode, error) {
	return s.load(ctx, hashHandle(rawDeviceCode))
}

// State resuelve el device_code sin filtrar expiración: el token endpoint
// necesita distinguir un flujo vencido (expired_token) de uno desconocido
// (invalid_grant) mientras el grant siga físicamente en el store.
func (s *DeviceCodeStore) State(ctx context.Context, rawDeviceCode string) (dc *serialization.DeviceCode, expired bool, err error) {
	g, err := s.store.Get(ctx, hashHandle(rawDeviceCode))
	if err != nil {
		return nil, false, err
	}
	if g == nil || g.Type != storage.GrantTypeDeviceCode {
		return nil, false, nil
	}
	var out serialization.DeviceCode
	if err := serialization.Deserialize(g.Data, &out); err != nil {
		logger.From(ctx).Warn("device code data corrupted", logger.ClientID(g.ClientID))
		return nil, false, nil
	}
	return &out, g.Expired(time.Now()), nil
}

// FindByUserCode resuelve para la pantalla de aprobación.
func (s *DeviceCodeStore) FindByUserCode(ctx context.Context, userCode string) (*serialization.DeviceCode, error) {
	ref, err := s.store.Get(ctx, userCodeKey(userCode))
	if err != nil {
		return nil, err
	}
	if ref = usable(ref, storage.GrantTypeDeviceCode, time.Now()); ref == nil {
		return nil, nil
	}
	return s.load(ctx, ref.Data)
}

// Approve marca el flujo como autorizado, fijando subject y scopes otorgados.
func (s *DeviceCodeStore) Approve(ctx context.Context, userCode string, subject *serialization.Subject, authorizedScopes []string) error {
	return s.decide(ctx, userCode, func(dc *serialization.DeviceCode) {
		dc.Status = serialization.DeviceStatusAuthorized
		dc.Subject = subject
		dc.AuthorizedScopes = authorizedScopes
	})
}

// Deny marca el flujo como rechazado por el usuario.
func (s *DeviceCodeStore) Deny(ctx context.Context, userCode string) error {
	return s.decide(ctx, userCode, func(dc *serialization.DeviceCode) {
		dc.Status = serialization.DeviceStatusDenied
		dc.Subject = nil
		dc.AuthorizedScopes = nil
	})
}

// Redeem consume un device_code autorizado. Take atómico: el segundo poll tras
// un canje exitoso ya no encuentra el grant y colapsa a invalid_grant.
func (s *DeviceCodeStore) Redeem(ctx context.Context, rawDeviceCode string) (*serialization.DeviceCode, error) {
	g, err := s.store.Take(ctx, hashHandle(rawDeviceCode))
	if err != nil {
		return nil, err
	}
	if g = usable(g, storage.GrantTypeDeviceCode, time.Now()); g == nil {
		return nil, nil
	}
	var dc serialization.DeviceCode
	if err := serialization.Deserialize(g.Data, &dc); err != nil {
		logger.From(ctx).Warn("device code data corrupted", logger.ClientID(g.ClientID))
		return nil, nil
	}
	// Limpiar el lookup del user_code; best-effort, el sweep lo barre igual.
	_ = s.store.Remove(ctx, userCodeKey(dc.UserCode))
	return &dc, nil
}

// Remove borra el flujo completo (deny terminal ya canjeado, cleanup).
func (s *DeviceCodeStore) Remove(ctx context.Context, rawDeviceCode string) error {
	dc, err := s.Peek(ctx, rawDeviceCode)
	if err != nil {
		return err
	}
	if dc != nil {
		_ = s.store.Remove(ctx, userCodeKey(dc.UserCode))
	}
	return s.store.Remove(ctx, hashHandle(rawDeviceCode))
}

func (s *DeviceCodeStore) load(ctx context.Context, key string) (*serialization.DeviceCode, error) {
	g, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if g = usable(g, storage.GrantTypeDeviceCode, time.Now()); g == nil {
		return nil, nil
	}
	var dc serialization.DeviceCode
	if err := serialization.Deserialize(g.Data, &dc); err != nil {
		logger.From(ctx).Warn("device code data corrupted", logger.ClientID(g.ClientID))
		return nil, nil
	}
	return &dc, nil
}

func (s *DeviceCodeStore) decide(ctx context.Context, userCode string, mutate func(*serialization.DeviceCode)) error {
	ref, err := s.store.Get(ctx, userCodeKey(userCode))
	if err != nil {
		return err
	}
	if ref = usable(ref, storage.GrantTypeDeviceCode, time.Now()); ref == nil {
		return nil // vencido o desconocido: no hay nada que decidir
	}
	mainKey := ref.Data
	g, err := s.store.Get(ctx, mainKey)
	if err != nil {
		return err
	}
	if g = usable(g, storage.GrantTypeDeviceCode, time.Now()); g == nil {
		return nil
	}
	var dc serialization.DeviceCode
	if err := serialization.Deserialize(g.Data, &dc); err != nil {
		return serialization.ErrDataCorruption
	}
	mutate(&dc)
	data, err := serialization.Serialize(&dc)
	if err != nil {
		return err
	}
	g.Data = data
	if dc.Subject != nil {
		g.SubjectID = dc.Subject.SubjectID
	}
	return s.store.Store(ctx, g)
}
