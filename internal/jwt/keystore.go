// Package jwt firma y valida los tokens del provider (access e id_token)
// con Ed25519, y publica el JWKS.
package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var ErrNoActiveKey = errors.New("no_active_signing_key")

// KeySet es un par de claves Ed25519 con su KID.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// NewEd25519 genera una clave Ed25519 con un KID dado.
func NewEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid, Alg: "EdDSA"}, nil
}

// Keystore mantiene la clave activa más las retiring (todavía publicadas en
// el JWKS para validar tokens viejos). Thread-safe.
type Keystore struct {
	mu       sync.RWMutex
	active   *KeySet
	retiring []*KeySet
}

// NewKeystore crea un keystore con una clave activa recién generada.
func NewKeystore() (*Keystore, error) {
	ks, err := NewEd25519("key-" + time.Now().UTC().Format("20060102T150405Z"))
	if err != nil {
		return nil, err
	}
	return &Keystore{active: ks}, nil
}

// NewKeystoreWith arranca con una clave dada (tests, material externo).
func NewKeystoreWith(ks *KeySet) *Keystore {
	return &Keystore{active: ks}
}

// Active devuelve la clave activa.
func (k *Keystore) Active() (*KeySet, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active == nil {
		return nil, ErrNoActiveKey
	}
	return k.active, nil
}

// Rotate genera una clave nueva; la anterior pasa a retiring.
func (k *Keystore) Rotate() error {
	next, err := NewEd25519("key-" + time.Now().UTC().Format("20060102T150405Z"))
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active != nil {
		k.retiring = append(k.retiring, k.active)
	}
	k.active = next
	return nil
}

// PublicKeyByKID resuelve la pubkey para un KID (active o retiring).
func (k *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active != nil && k.active.KID == kid {
		return k.active.Pub, nil
	}
	for _, r := range k.retiring {
		if r.KID == kid {
			return r.Pub, nil
		}
	}
	return nil, errors.New("kid_not_found")
}

// ----- persistencia de claves -----

type keySetFile struct {
	KID  string `json:"kid"`
	Alg  string `json:"alg"`
	Seed string `json:"seed"` // base64url del seed Ed25519
}

// EncodeKeySet serializa una clave (seed + kid) para guardarla en disco.
func EncodeKeySet(ks *KeySet) ([]byte, error) {
	if len(ks.Priv) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid_private_key")
	}
	return json.MarshalIndent(keySetFile{
		KID:  ks.KID,
		Alg:  ks.Alg,
		Seed: base64.RawURLEncoding.EncodeToString(ks.Priv.Seed()),
	}, "", "  ")
}

// DecodeKeySet reconstruye una clave serializada con EncodeKeySet.
func DecodeKeySet(b []byte) (*KeySet, error) {
	var f keySetFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	seed, err := base64.RawURLEncoding.DecodeString(f.Seed)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("invalid_seed_size")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	alg := f.Alg
	if alg == "" {
		alg = "EdDSA"
	}
	return &KeySet{
		Priv: priv,
		Pub:  priv.Public().(ed25519.PublicKey),
		KID:  f.KID,
		Alg:  alg,
	}, nil
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo públicas: activa + retiring) en JSON.
func (k *Keystore) JWKSJSON() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out jwks
	add := func(ks *KeySet) {
		out.Keys = append(out.Keys, jwk{
			Kty: "OKP", Crv: "Ed25519", Kid: ks.KID, Alg: ks.Alg, Use: "sig",
			X: base64.RawURLEncoding.EncodeToString(ks.Pub),
		})
	}
	if k.active != nil {
		add(k.active)
	}
	for _, r := range k.retiring {
		add(r)
	}
	b, _ := json.Marshal(out)
	return b
}
