// Package grants expone vistas tipadas sobre el GrantStore: cada store
// namespacea por Type, genera y hashea sus handles, y (de)serializa su payload.
//
// El filtrado por expiración vive acá: el store crudo puede retener grants
// vencidos hasta el sweep, pero esta capa nunca los retorna como válidos.
package grants

import (
	"time"

	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/storage"
)

// handleBytes es el tamaño de los handles opacos (base64url de 32 bytes).
const handleBytes = 32

// newHandle genera un handle crudo y su key hasheada para el store.
func newHandle() (raw, hashed string, err error) {
	raw, err = tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", "", err
	}
	return raw, tokens.SHA256Base64URL(raw), nil
}

// hashHandle mapea un handle crudo presentado por un client a su key de store.
func hashHandle(raw string) string {
	return tokens.SHA256Base64URL(raw)
}

// usable filtra grants ausentes, de otro tipo o vencidos.
func usable(g *storage.PersistedGrant, wantType string, now time.Time) *storage.PersistedGrant {
	if g == nil || g.Type != wantType || g.Expired(now) {
		return nil
	}
	return g
}
