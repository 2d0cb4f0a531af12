// Package response arma las respuestas de protocolo finales a partir de un
// request validado: el authorize redirect (código + state) y el JSON del
// token endpoint.
package response

import (
	"time"

	"github.com/dropDatabas3/janus/internal/domain"
)

// Lifetimes son los defaults del server; el client puede sobreescribir cada
// uno con sus propios valores en segundos.
type Lifetimes struct {
	AuthorizationCode time.Duration
	AccessToken       time.Duration
	IdentityToken     time.Duration
	RefreshToken      time.Duration
	DeviceCode        time.Duration
	Consent           time.Duration
}

// DefaultLifetimes replica los defaults habituales del ecosistema.
func DefaultLifetimes() Lifetimes {
	return Lifetimes{
		AuthorizationCode: 5 * time.Minute,
		AccessToken:       time.Hour,
		IdentityToken:     5 * time.Minute,
		RefreshToken:      30 * 24 * time.Hour,
		DeviceCode:        10 * time.Minute,
		Consent:           0, // sin expiración práctica
	}
}

func clientLifetime(clientSeconds int, fallback time.Duration) time.Duration {
	if clientSeconds > 0 {
		return time.Duration(clientSeconds) * time.Second
	}
	return fallback
}

func (l Lifetimes) authorizationCode(c *domain.Client) time.Duration {
	return clientLifetime(c.AuthorizationCodeLifetime, l.AuthorizationCode)
}

func (l Lifetimes) accessToken(c *domain.Client) time.Duration {
	return clientLifetime(c.AccessTokenLifetime, l.AccessToken)
}

func (l Lifetimes) identityToken(c *domain.Client) time.Duration {
	return clientLifetime(c.IdentityTokenLifetime, l.IdentityToken)
}

func (l Lifetimes) refreshToken(c *domain.Client) time.Duration {
	return clientLifetime(c.RefreshTokenLifetime, l.RefreshToken)
}

func (l Lifetimes) deviceCode(c *domain.Client) time.Duration {
	return clientLifetime(c.DeviceCodeLifetime, l.DeviceCode)
}

// ExpiresIn calcula el campo expires_in: floor(expiración − ahora) en
// segundos, nunca negativo.
func ExpiresIn(expiry time.Time, now time.Time) int {
	secs := int(expiry.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
