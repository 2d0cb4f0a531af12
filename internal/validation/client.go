package validation

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/janus/internal/audit"
	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/security/password"
)

// ClientCredentials son las credenciales extraídas del request, antes de
// cualquier verificación.
type ClientCredentials struct {
	ClientID string
	Secret   string
	// Assertion es el client_assertion crudo; excluyente con Secret.
	Assertion     string
	AssertionType string
	// FromHeader distingue Basic auth de credenciales en el body.
	FromHeader bool
}

// ExtractClientCredentials saca las credenciales del header Authorization
// (Basic, valores form-url-encoded según RFC 6749 §2.3.1), del body
// (client_secret) o de un client_assertion firmado. Presentar credenciales
// por más de un canal es invalid_request.
func ExtractClientCredentials(r *http.Request, form url.Values) (ClientCredentials, Result) {
	assertion := form.Get(oidc.ParamClientAssertion)
	id, secret, hasBasic := r.BasicAuth()
	if hasBasic {
		if form.Get(oidc.ParamClientSecret) != "" || assertion != "" {
			return ClientCredentials{}, fail(oidc.ErrorInvalidRequest, "client credentials in multiple locations")
		}
		decodedID, err := url.QueryUnescape(id)
		if err != nil {
			return ClientCredentials{}, fail(oidc.ErrorInvalidClient, "malformed Basic authorization header")
		}
		decodedSecret, err := url.QueryUnescape(secret)
		if err != nil {
			return ClientCredentials{}, fail(oidc.ErrorInvalidClient, "malformed Basic authorization header")
		}
		return ClientCredentials{ClientID: decodedID, Secret: decodedSecret, FromHeader: true}, ok()
	}
	if assertion != "" {
		if form.Get(oidc.ParamClientSecret) != "" {
			return ClientCredentials{}, fail(oidc.ErrorInvalidRequest, "client credentials in multiple locations")
		}
		if len(assertion) > oidc.MaxAssertionLength {
			return ClientCredentials{}, fail(oidc.ErrorInvalidClient, "client assertion too long")
		}
		clientID := form.Get(oidc.ParamClientID)
		if clientID == "" {
			// RFC 7523 §3: con assertion el client_id es opcional; el sub
			// del assertion identifica al client.
			clientID = AssertionClientID(assertion)
		}
		return ClientCredentials{
			ClientID:      clientID,
			Assertion:     assertion,
			AssertionType: form.Get(oidc.ParamClientAssertionType),
		}, ok()
	}
	return ClientCredentials{
		ClientID: form.Get(oidc.ParamClientID),
		Secret:   form.Get(oidc.ParamClientSecret),
	}, ok()
}

// ClientValidator autentica al client que llama a los endpoints back-channel
// (token, device authorization, introspection, revocation).
type ClientValidator struct {
	Clients domain.ClientStore
	Audit   *audit.Recorder
	// Assertions resuelve el verifier por client_assertion_type. Nil
	// deshabilita el canal de assertions.
	Assertions *ClientAssertions
}

func NewClientValidator(clients domain.ClientStore, rec *audit.Recorder) *ClientValidator {
	return &ClientValidator{Clients: clients, Audit: rec}
}

// Validate resuelve y autentica. Público sin secret pasa; confidential exige
// un secret vigente. Toda falla colapsa a invalid_client sin detalle.
func (v *ClientValidator) Validate(ctx context.Context, r *http.Request, form url.Values) (*domain.Client, Result, error) {
	creds, res := ExtractClientCredentials(r, form)
	if res.IsError {
		return nil, res, nil
	}
	if creds.ClientID == "" {
		return nil, fail(oidc.ErrorInvalidClient, "client_id is required"), nil
	}
	if len(creds.ClientID) > oidc.MaxClientIDLength || len(creds.Secret) > oidc.MaxSecretLength {
		return nil, fail(oidc.ErrorInvalidClient, "client credentials too long"), nil
	}

	client, err := v.Clients.FindClientByID(ctx, creds.ClientID)
	if err != nil {
		return nil, Result{}, err
	}
	if client == nil || !client.Enabled {
		v.authFailure(ctx, creds.ClientID, "unknown or disabled client")
		return nil, fail(oidc.ErrorInvalidClient, "unknown client"), nil
	}

	if client.Type == domain.ClientTypePublic {
		if creds.Secret != "" || creds.Assertion != "" {
			// Credenciales presentadas por un client público no validan nada.
			v.authFailure(ctx, client.ClientID, "credentials presented by public client")
			return nil, fail(oidc.ErrorInvalidClient, "invalid client authentication"), nil
		}
		return client, ok(), nil
	}

	if creds.Assertion != "" {
		verifier := v.Assertions.Find(creds.AssertionType)
		if verifier == nil {
			v.authFailure(ctx, client.ClientID, "unsupported client_assertion_type")
			return nil, fail(oidc.ErrorInvalidClient, "unsupported client assertion type"), nil
		}
		if res := verifier.Verify(ctx, client, creds.Assertion); res.IsError {
			v.authFailure(ctx, client.ClientID, "assertion verification failed")
			return nil, res, nil
		}
		return client, ok(), nil
	}

	if creds.Secret == "" {
		v.authFailure(ctx, client.ClientID, "missing secret")
		return nil, fail(oidc.ErrorInvalidClient, "client authentication required"), nil
	}
	if !verifySecret(client.Secrets, creds.Secret) {
		v.authFailure(ctx, client.ClientID, "secret mismatch")
		return nil, fail(oidc.ErrorInvalidClient, "invalid client authentication"), nil
	}
	return client, ok(), nil
}

// verifySecret prueba el secret presentado contra cada credencial vigente.
// shared_secret compara en tiempo constante sobre digests; argon2id delega
// en el verificador PHC.
func verifySecret(secrets []domain.Secret, presented string) bool {
	match := false
	for _, s := range secrets {
		if !secretUsable(s) {
			continue
		}
		switch s.Type {
		case domain.SecretTypeSharedSecret, "":
			want := sha256.Sum256([]byte(s.Value))
			got := sha256.Sum256([]byte(presented))
			if subtle.ConstantTimeCompare(want[:], got[:]) == 1 {
				match = true
			}
		case domain.SecretTypeArgon2id:
			if password.Verify(presented, s.Value) {
				match = true
			}
		}
	}
	return match
}

// secretUsable descarta credenciales vencidas.
func secretUsable(s domain.Secret) bool {
	return s.Expiration == nil || !s.Expiration.Before(time.Now())
}

func (v *ClientValidator) authFailure(ctx context.Context, clientID, reason string) {
	logger.From(ctx).Warn("client authentication failed",
		logger.ClientID(clientID), logger.String("reason", reason))
	if v.Audit != nil {
		v.Audit.Record(ctx, audit.Event{
			Name:     audit.EventClientAuthFailure,
			ClientID: clientID,
			Detail:   map[string]any{"reason": reason},
		})
	}
}
