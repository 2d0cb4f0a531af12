package jwt

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer firma tokens usando la clave activa del keystore.
type Issuer struct {
	Iss  string // "iss"
	Keys *Keystore
}

func NewIssuer(iss string, ks *Keystore) *Issuer {
	return &Issuer{Iss: iss, Keys: ks}
}

// AccessTokenInput agrupa lo necesario para un access token JWT.
type AccessTokenInput struct {
	SubjectID string // vacío en client_credentials: sub cae al client_id
	ClientID  string
	SessionID string
	Scopes    []string
	Audiences []string
	AMR       []string
	Lifetime  time.Duration
	Extra     map[string]any
}

// IssueAccessToken emite un access token JWT. Retorna token y expiración.
func (i *Issuer) IssueAccessToken(in AccessTokenInput) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(in.Lifetime)

	sub := in.SubjectID
	if sub == "" {
		sub = in.ClientID // M2M: el client es el subject
	}

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       sub,
		"client_id": in.ClientID,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
	}
	if len(in.Audiences) == 1 {
		claims["aud"] = in.Audiences[0]
	} else if len(in.Audiences) > 1 {
		claims["aud"] = in.Audiences
	}
	if len(in.Scopes) > 0 {
		claims["scope"] = joinScopes(in.Scopes)
	}
	if len(in.AMR) > 0 {
		claims["amr"] = in.AMR
	}
	if in.SessionID != "" {
		claims["sid"] = in.SessionID
	}
	for k, v := range in.Extra {
		claims[k] = v
	}

	signed, _, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IDTokenInput agrupa lo necesario para un id_token OIDC.
type IDTokenInput struct {
	SubjectID   string
	ClientID    string
	SessionID   string
	Nonce       string
	AuthTime    time.Time
	AMR         []string
	AccessToken string // para at_hash, opcional
	Code        string // para c_hash, opcional
	Lifetime    time.Duration
	Extra       map[string]any
}

// IssueIDToken emite un id_token. aud es siempre el client_id.
func (i *Issuer) IssueIDToken(in IDTokenInput) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(in.Lifetime)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": in.SubjectID,
		"aud": in.ClientID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	if !in.AuthTime.IsZero() {
		claims["auth_time"] = in.AuthTime.Unix()
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}
	if len(in.AMR) > 0 {
		claims["amr"] = in.AMR
	}
	if in.SessionID != "" {
		claims["sid"] = in.SessionID
	}
	if in.AccessToken != "" {
		claims["at_hash"] = leftHalfHash(in.AccessToken)
	}
	if in.Code != "" {
		claims["c_hash"] = leftHalfHash(in.Code)
	}
	for k, v := range in.Extra {
		claims[k] = v
	}

	signed, _, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SignRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve el
// JWT firmado junto con el KID usado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, string, error) {
	ks, err := i.Keys.Active()
	if err != nil {
		return "", "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = ks.KID
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(ks.Priv)
	if err != nil {
		return "", "", err
	}
	return signed, ks.KID, nil
}

// leftHalfHash computa at_hash/c_hash: base64url de los primeros 128 bits de
// SHA-256 del input.
func leftHalfHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

func joinScopes(scopes []string) string {
	out := ""
	for idx, s := range scopes {
		if idx > 0 {
			out += " "
		}
		out += s
	}
	return out
}
