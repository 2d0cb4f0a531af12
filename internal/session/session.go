// Package session define la vista del core sobre la sesión autenticada.
// La autenticación en sí es territorio del host; este paquete provee el
// contrato más una implementación de referencia cookie+cache.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/google/uuid"
)

// Session es el estado de autenticación del usuario actual.
type Session struct {
	SubjectID        string                `json:"sub"`
	SessionID        string                `json:"sid"`
	AuthTime         time.Time             `json:"auth_time"`
	AMR              []string              `json:"amr,omitempty"`
	IdentityProvider string                `json:"idp,omitempty"`
	Claims           []serialization.Claim `json:"claims,omitempty"`
	Expires          time.Time             `json:"expires"`
}

// Subject produce el snapshot serializable para payloads de grants.
func (s *Session) Subject() serialization.Subject {
	return serialization.Subject{
		SubjectID:        s.SubjectID,
		AuthTime:         s.AuthTime,
		AMR:              s.AMR,
		IdentityProvider: s.IdentityProvider,
		Claims:           s.Claims,
	}
}

// Reader expone la sesión actual a los validators y al interaction generator.
// Retorna (nil, nil) si no hay usuario autenticado.
type Reader interface {
	Current(ctx context.Context, r *http.Request) (*Session, error)
}

const defaultCookieName = "janus.session"

// Manager es la implementación de referencia: sesión en cache, cookie con el
// handle. El handle va hasheado a la cache, como cualquier otro artefacto.
type Manager struct {
	cache      cache.Client
	cookieName string
	lifetime   time.Duration
}

func NewManager(c cache.Client, cookieName string, lifetime time.Duration) *Manager {
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	if lifetime <= 0 {
		lifetime = 8 * time.Hour
	}
	return &Manager{cache: c, cookieName: cookieName, lifetime: lifetime}
}

// Current implementa Reader.
func (m *Manager) Current(ctx context.Context, r *http.Request) (*Session, error) {
	ck, err := r.Cookie(m.cookieName)
	if err != nil || ck.Value == "" {
		return nil, nil
	}
	b, err := m.cache.Get(ctx, "sid:"+tokens.SHA256Base64URL(ck.Value))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if json.Unmarshal(b, &s) != nil {
		return nil, nil
	}
	if time.Now().After(s.Expires) {
		return nil, nil
	}
	return &s, nil
}

// Establish crea la sesión y setea la cookie. Retorna el session id.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, s Session) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if s.AuthTime.IsZero() {
		s.AuthTime = time.Now().UTC()
	}
	s.Expires = time.Now().UTC().Add(m.lifetime)

	b, err := json.Marshal(&s)
	if err != nil {
		return "", err
	}
	if err := m.cache.Set(ctx, "sid:"+tokens.SHA256Base64URL(handle), b, m.lifetime); err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    handle,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.lifetime.Seconds()),
	})
	return s.SessionID, nil
}

// Terminate borra la sesión y expira la cookie.
func (m *Manager) Terminate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ck, err := r.Cookie(m.cookieName)
	if err == nil && ck.Value != "" {
		_ = m.cache.Delete(ctx, "sid:"+tokens.SHA256Base64URL(ck.Value))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return nil
}
