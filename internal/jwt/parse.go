package jwt

import (
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
)

// Keyfunc devuelve un jwt.Keyfunc que elige la pubkey por 'kid' del header.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			return i.Keys.PublicKeyByKID(kid)
		}
		ks, err := i.Keys.Active()
		if err != nil {
			return nil, err
		}
		return ks.Pub, nil
	}
}

// Parse valida firma (EdDSA) e issuer, y devuelve las claims.
// exp/nbf los valida el parser de jwtv5.
func (i *Issuer) Parse(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseNoExpiry valida firma e issuer pero tolera tokens vencidos.
// End-session acepta id_token_hint expirados: lo que importa es la firma.
func (i *Issuer) ParseNoExpiry(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithoutClaimsValidation())
	if err != nil || tok == nil {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
