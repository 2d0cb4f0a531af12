package validation

import (
	"context"
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// AssertionVerifier valida un client_assertion de un tipo dado. El resultado
// reemplaza a la verificación de secret plano.
type AssertionVerifier interface {
	AssertionType() string
	Verify(ctx context.Context, client *domain.Client, assertion string) Result
}

// ClientAssertions es el registro de verifiers, keyed por
// client_assertion_type. Se arma una vez al arranque.
type ClientAssertions struct {
	byType map[string]AssertionVerifier
}

func NewClientAssertions(verifiers ...AssertionVerifier) *ClientAssertions {
	r := &ClientAssertions{byType: make(map[string]AssertionVerifier, len(verifiers))}
	for _, v := range verifiers {
		r.byType[v.AssertionType()] = v
	}
	return r
}

func (r *ClientAssertions) Find(assertionType string) AssertionVerifier {
	if r == nil {
		return nil
	}
	return r.byType[assertionType]
}

// AssertionClientID saca el sub del assertion sin verificar la firma, solo
// para resolver el client. La verificación real viene después, contra las
// credenciales del client resuelto.
func AssertionClientID(assertion string) string {
	var claims jwtv5.RegisteredClaims
	if _, _, err := jwtv5.NewParser().ParseUnverified(assertion, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

// JWTBearerAssertion verifica assertions client_secret_jwt (RFC 7523):
// HMAC firmado con un shared_secret vigente del client, iss == sub ==
// client_id y aud apuntando al issuer o al token endpoint.
type JWTBearerAssertion struct {
	audiences []string
}

func NewJWTBearerAssertion(issuer string) *JWTBearerAssertion {
	return &JWTBearerAssertion{
		audiences: []string{issuer, issuer + "/connect/token"},
	}
}

func (a *JWTBearerAssertion) AssertionType() string {
	return oidc.ClientAssertionTypeJWTBearer
}

func (a *JWTBearerAssertion) Verify(ctx context.Context, client *domain.Client, assertion string) Result {
	for _, s := range client.Secrets {
		if !secretUsable(s) {
			continue
		}
		// argon2id guarda solo el hash; no puede servir como clave HMAC.
		if s.Type != domain.SecretTypeSharedSecret && s.Type != "" {
			continue
		}
		if a.verifyWithKey(client, assertion, []byte(s.Value)) {
			return ok()
		}
	}
	return fail(oidc.ErrorInvalidClient, "invalid client assertion")
}

func (a *JWTBearerAssertion) verifyWithKey(client *domain.Client, assertion string, key []byte) bool {
	parsed, err := jwtv5.Parse(assertion,
		func(t *jwtv5.Token) (any, error) {
			if _, hs := t.Method.(*jwtv5.SigningMethodHMAC); !hs {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		},
		jwtv5.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtv5.WithIssuer(client.ClientID),
		jwtv5.WithSubject(client.ClientID),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	auds, err := parsed.Claims.GetAudience()
	if err != nil {
		return false
	}
	for _, aud := range auds {
		for _, want := range a.audiences {
			if aud == want {
				return true
			}
		}
	}
	return false
}
