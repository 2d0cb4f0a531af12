package validation

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// IntrospectionValidator autentica al caller y extrae token + hint. Sirve
// tanto para introspection (RFC 7662) como para revocation (RFC 7009): ambos
// endpoints comparten la forma del request.
//
// El caller puede ser un client registrado o un API resource con secret
// propio: el resource server introspecta los access tokens emitidos para su
// audiencia. Un ID que no resuelve como client se intenta como resource.
type IntrospectionValidator struct {
	Clients   *ClientValidator
	Resources domain.ResourceStore
}

func NewIntrospectionValidator(clients *ClientValidator, resources domain.ResourceStore) *IntrospectionValidator {
	return &IntrospectionValidator{Clients: clients, Resources: resources}
}

func (v *IntrospectionValidator) Validate(ctx context.Context, r *http.Request, form url.Values) (IntrospectionResult, error) {
	creds, res := ExtractClientCredentials(r, form)
	if res.IsError {
		return IntrospectionResult{Result: res}, nil
	}
	if creds.ClientID == "" {
		return IntrospectionResult{Result: fail(oidc.ErrorInvalidClient, "client_id is required")}, nil
	}

	req := &ValidatedIntrospectionRequest{}
	known, err := v.Clients.Clients.FindClientByID(ctx, creds.ClientID)
	if err != nil {
		return IntrospectionResult{}, err
	}
	if known != nil {
		client, clientRes, err := v.Clients.Validate(ctx, r, form)
		if err != nil {
			return IntrospectionResult{}, err
		}
		if clientRes.IsError {
			return IntrospectionResult{Result: clientRes}, nil
		}
		req.Client = client
	} else {
		resource, resourceRes, err := v.validateResource(ctx, creds)
		if err != nil {
			return IntrospectionResult{}, err
		}
		if resourceRes.IsError {
			return IntrospectionResult{Result: resourceRes}, nil
		}
		req.Resource = resource
	}

	token := form.Get(oidc.ParamToken)
	if token == "" {
		return IntrospectionResult{Result: fail(oidc.ErrorInvalidRequest, "token is required")}, nil
	}
	req.Token = token
	switch hint := form.Get(oidc.ParamTokenTypeHint); hint {
	case oidc.TokenTypeHintAccessToken, oidc.TokenTypeHintRefreshToken:
		req.TokenTypeHint = hint
	default:
		// RFC 7009 §2.1: hint desconocido se ignora, no es error.
	}
	return IntrospectionResult{Request: req}, nil
}

// validateResource autentica un API resource por nombre + secret. Misma
// política que los clients confidenciales: secret vigente obligatorio, toda
// falla colapsa a invalid_client sin detalle.
func (v *IntrospectionValidator) validateResource(ctx context.Context, creds ClientCredentials) (*domain.APIResource, Result, error) {
	if v.Resources == nil {
		return nil, fail(oidc.ErrorInvalidClient, "unknown client"), nil
	}
	found, err := v.Resources.FindAPIResourcesByName(ctx, []string{creds.ClientID})
	if err != nil {
		return nil, Result{}, err
	}
	if len(found) == 0 || !found[0].Enabled {
		logger.From(ctx).Warn("introspection caller is neither client nor resource",
			logger.ClientID(creds.ClientID))
		return nil, fail(oidc.ErrorInvalidClient, "unknown client"), nil
	}
	resource := found[0]
	if creds.Secret == "" || !verifySecret(resource.Secrets, creds.Secret) {
		logger.From(ctx).Warn("api resource authentication failed",
			logger.String("resource", resource.Name))
		return nil, fail(oidc.ErrorInvalidClient, "invalid client authentication"), nil
	}
	return &resource, ok(), nil
}
