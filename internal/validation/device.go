package validation

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/janus/internal/oidc"
)

// DeviceAuthorizationValidator valida el endpoint de arranque del device
// flow: client + scopes. El usuario aparece recién en la aprobación.
type DeviceAuthorizationValidator struct {
	Clients *ClientValidator
	Scopes  *ScopeValidator
}

func NewDeviceAuthorizationValidator(clients *ClientValidator, scopes *ScopeValidator) *DeviceAuthorizationValidator {
	return &DeviceAuthorizationValidator{Clients: clients, Scopes: scopes}
}

func (v *DeviceAuthorizationValidator) Validate(ctx context.Context, r *http.Request, form url.Values) (DeviceAuthorizationResult, error) {
	client, res, err := v.Clients.Validate(ctx, r, form)
	if err != nil {
		return DeviceAuthorizationResult{}, err
	}
	if res.IsError {
		return DeviceAuthorizationResult{Result: res}, nil
	}
	if !client.AllowsGrantType(oidc.GrantTypeDeviceCode) {
		return DeviceAuthorizationResult{Result: fail(oidc.ErrorUnauthorizedClient, "grant type not allowed for client")}, nil
	}

	rawScope := form.Get(oidc.ParamScope)
	if len(rawScope) > oidc.MaxScopeLength {
		return DeviceAuthorizationResult{Result: fail(oidc.ErrorInvalidRequest, "scope too long")}, nil
	}
	requested := strings.Fields(rawScope)
	scopeRes, err := v.Scopes.Validate(ctx, client, requested)
	if err != nil {
		return DeviceAuthorizationResult{}, err
	}
	if scopeRes.IsError {
		return DeviceAuthorizationResult{Result: scopeRes.Result}, nil
	}

	return DeviceAuthorizationResult{Request: &ValidatedDeviceAuthorizationRequest{
		Client:          client,
		RequestedScopes: requested,
		ParsedScopes:    scopeRes.Scopes,
		Resources:       scopeRes.Resources,
		IsOpenID:        scopeRes.HasOpenID,
	}}, nil
}
