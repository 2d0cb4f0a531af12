// Package storage define el PersistedGrant y la abstracción de store para
// artefactos opacos revocables: authorization codes, refresh/reference tokens,
// device codes y consents.
package storage

import (
	"errors"
	"time"
)

// Grant type discriminators. Comparten un solo keyspace: Key es único global.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeReferenceToken    = "reference_token"
	GrantTypeUserConsent       = "user_consent"
	GrantTypeDeviceCode        = "device_code"
)

// PersistedGrant es el registro durable de un artefacto opaco.
// Key la genera el caller (capa grants) y llega ya hasheada: el store nunca
// ve handles crudos.
type PersistedGrant struct {
	Key          string
	Type         string
	ClientID     string
	SubjectID    string // vacío para grants pre-subject (device codes, client creds)
	SessionID    string
	Description  string
	CreationTime time.Time
	Expiration   time.Time
	ConsumedTime *time.Time
	Data         string // payload serializado, específico del Type
}

// Expired indica si el grant venció respecto de now.
func (g *PersistedGrant) Expired(now time.Time) bool {
	return !g.Expiration.IsZero() && g.Expiration.Before(now)
}

// Filter restringe GetAll/RemoveAll. Al menos un campo debe estar presente:
// un filtro vacío borraría la tabla completa.
type Filter struct {
	SubjectID string
	SessionID string
	ClientID  string
	Types     []string
}

// ErrInvalidFilter se retorna ante un Filter totalmente vacío.
var ErrInvalidFilter = errors.New("storage: empty grant filter")

// Validate rechaza filtros vacíos.
func (f Filter) Validate() error {
	if f.SubjectID == "" && f.SessionID == "" && f.ClientID == "" && len(f.Types) == 0 {
		return ErrInvalidFilter
	}
	return nil
}

// Matches evalúa el filtro contra un grant. Campos vacíos no restringen.
func (f Filter) Matches(g *PersistedGrant) bool {
	if f.SubjectID != "" && g.SubjectID != f.SubjectID {
		return false
	}
	if f.SessionID != "" && g.SessionID != f.SessionID {
		return false
	}
	if f.ClientID != "" && g.ClientID != f.ClientID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if g.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
