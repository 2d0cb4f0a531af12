// Package serialization convierte los payloads de grants (claims, scopes,
// referencia al client) a/desde su representación durable en JSON.
//
// Los clients y resources se guardan solo por id/nombre y se re-resuelven
// contra el store vivo al deserializar: nunca se embebe configuración mutable.
package serialization

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrDataCorruption indica Data malformado o manipulado. Los callers lo tratan
// como "grant inválido", nunca como crash hacia la capa HTTP.
var ErrDataCorruption = errors.New("serialization: grant data corrupted")

// Claim es la tripla type/value/valueType que sobrevive el round-trip.
type Claim struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	ValueType string `json:"value_type,omitempty"`
}

// Subject es el snapshot serializable del usuario autenticado.
type Subject struct {
	SubjectID        string    `json:"sub"`
	AuthTime         time.Time `json:"auth_time"`
	AMR              []string  `json:"amr,omitempty"`
	IdentityProvider string    `json:"idp,omitempty"`
	Claims           []Claim   `json:"claims,omitempty"`
}

// AuthorizationCode es el payload de un grant authorization_code.
type AuthorizationCode struct {
	ClientID            string   `json:"client_id"`
	Subject             Subject  `json:"subject"`
	SessionID           string   `json:"sid,omitempty"`
	RedirectURI         string   `json:"redirect_uri"`
	RequestedScopes     []string `json:"scopes"`
	Nonce               string   `json:"nonce,omitempty"`
	State               string   `json:"state,omitempty"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
	WasConsentShown     bool     `json:"consent_shown,omitempty"`
}

// RefreshToken es el payload de un grant refresh_token.
type RefreshToken struct {
	ClientID        string   `json:"client_id"`
	Subject         Subject  `json:"subject"`
	SessionID       string   `json:"sid,omitempty"`
	Scopes          []string `json:"scopes"`
	Audiences       []string `json:"audiences,omitempty"`
	AccessTokenType string   `json:"access_token_type,omitempty"`
}

// ReferenceToken es el payload de un access token opaco.
type ReferenceToken struct {
	ClientID  string    `json:"client_id"`
	SubjectID string    `json:"sub,omitempty"`
	SessionID string    `json:"sid,omitempty"`
	Scopes    []string  `json:"scopes"`
	Audiences []string  `json:"audiences,omitempty"`
	Claims    []Claim   `json:"claims,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	Expiry    time.Time `json:"exp"`
}

// Consent es el payload de un grant user_consent.
type Consent struct {
	SubjectID string   `json:"sub"`
	ClientID  string   `json:"client_id"`
	Scopes    []string `json:"scopes"`
}

// Device flow states.
const (
	DeviceStatusPending    = "pending"
	DeviceStatusAuthorized = "authorized"
	DeviceStatusDenied     = "denied"
)

// DeviceCode es el payload de un grant device_code. Status es tri-state;
// Subject se llena recién al aprobar.
type DeviceCode struct {
	ClientID         string   `json:"client_id"`
	UserCode         string   `json:"user_code"`
	RequestedScopes  []string `json:"scopes"`
	Status           string   `json:"status"`
	Subject          *Subject `json:"subject,omitempty"`
	AuthorizedScopes []string `json:"authorized_scopes,omitempty"`
	SessionID        string   `json:"sid,omitempty"`
	Interval         int      `json:"interval"`
}

// Serialize produce la representación durable de un payload.
func Serialize(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialization: marshal: %w", err)
	}
	return string(b), nil
}

// Deserialize reconstruye un payload. Cualquier malformación es ErrDataCorruption.
func Deserialize(data string, out any) error {
	if data == "" {
		return ErrDataCorruption
	}
	dec := json.Unmarshal([]byte(data), out)
	if dec != nil {
		return ErrDataCorruption
	}
	return nil
}
