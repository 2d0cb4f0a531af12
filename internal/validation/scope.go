package validation

import (
	"context"
	"regexp"
	"strings"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: profile, profile:read, transaction:123, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "".
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName indica si el nombre cumple el patrón permitido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ParsedScope es un scope ya descompuesto. Para scopes simples Name == Raw y
// Parameter queda vacío; un parser registrado puede separar scopes
// parametrizados tipo "transaction:123" en base + parámetro.
type ParsedScope struct {
	Raw       string
	Name      string
	Parameter string
}

// ScopeParser descompone un valor de scope crudo. Retorna false si el valor
// no le pertenece (se sigue con el siguiente candidato).
type ScopeParser interface {
	Parse(raw string) (ParsedScope, bool)
}

// ScopeParserFunc adapta una función al contrato ScopeParser.
type ScopeParserFunc func(raw string) (ParsedScope, bool)

func (f ScopeParserFunc) Parse(raw string) (ParsedScope, bool) { return f(raw) }

// ScopeParsers es el registro de parsers, keyed por nombre base. Se resuelve
// una vez al arranque; el core lo consulta en cada validación.
type ScopeParsers struct {
	byBase map[string]ScopeParser
}

func NewScopeParsers() *ScopeParsers {
	return &ScopeParsers{byBase: make(map[string]ScopeParser)}
}

// Register asocia un parser al nombre base (la parte antes del primer ":").
func (p *ScopeParsers) Register(base string, parser ScopeParser) {
	p.byBase[base] = parser
}

// ParameterizedParser es el parser estándar para scopes "base:parámetro":
// valida contra el nombre base registrado y arrastra el parámetro.
func ParameterizedParser(base string) ScopeParser {
	return ScopeParserFunc(func(raw string) (ParsedScope, bool) {
		name, param, found := strings.Cut(raw, ":")
		if !found || name != base || param == "" {
			return ParsedScope{}, false
		}
		return ParsedScope{Raw: raw, Name: name, Parameter: param}, true
	})
}

// Parse descompone un scope crudo. Sin parser aplicable, el scope es su
// propio nombre.
func (p *ScopeParsers) Parse(raw string) ParsedScope {
	if base, _, found := strings.Cut(raw, ":"); found && p.byBase != nil {
		if parser, registered := p.byBase[base]; registered {
			if parsed, matched := parser.Parse(raw); matched {
				return parsed
			}
		}
	}
	return ParsedScope{Raw: raw, Name: raw}
}

// ScopeResult es la salida del scope validator.
type ScopeResult struct {
	Result
	Scopes           []ParsedScope
	Resources        domain.Resources
	HasOpenID        bool
	HasOfflineAccess bool
}

// ScopeValidator resuelve scopes pedidos contra el catálogo de resources y
// la lista permitida del client.
type ScopeValidator struct {
	Resources domain.ResourceStore
	Parsers   *ScopeParsers
}

func NewScopeValidator(resources domain.ResourceStore, parsers *ScopeParsers) *ScopeValidator {
	if parsers == nil {
		parsers = NewScopeParsers()
	}
	return &ScopeValidator{Resources: resources, Parsers: parsers}
}

// Validate chequea cada scope pedido: sintaxis, permitido para el client y
// resoluble a un identity resource o api scope habilitado. offline_access es
// especial: no es un resource, lo gobierna AllowOfflineAccess del client.
func (v *ScopeValidator) Validate(ctx context.Context, client *domain.Client, requested []string) (ScopeResult, error) {
	if len(requested) == 0 {
		return ScopeResult{Result: fail(oidc.ErrorInvalidScope, "scope is required")}, nil
	}

	var out ScopeResult
	names := make([]string, 0, len(requested))
	for _, raw := range requested {
		if raw == oidc.ScopeOfflineAccess {
			if !client.AllowOfflineAccess {
				return ScopeResult{Result: fail(oidc.ErrorInvalidScope, "offline_access is not allowed for this client")}, nil
			}
			out.HasOfflineAccess = true
			out.Scopes = append(out.Scopes, ParsedScope{Raw: raw, Name: raw})
			continue
		}
		if !ValidScopeName(raw) {
			return ScopeResult{Result: fail(oidc.ErrorInvalidScope, "malformed scope value")}, nil
		}
		parsed := v.Parsers.Parse(raw)
		if !client.AllowsScope(parsed.Name) {
			return ScopeResult{Result: fail(oidc.ErrorInvalidScope, "scope not allowed for client: "+parsed.Name)}, nil
		}
		if parsed.Name == oidc.ScopeOpenID {
			out.HasOpenID = true
		}
		out.Scopes = append(out.Scopes, parsed)
		names = append(names, parsed.Name)
	}

	if len(names) == 0 {
		// Solo offline_access no es un request válido: no hay nada que emitir.
		return ScopeResult{Result: fail(oidc.ErrorInvalidScope, "offline_access requires an additional scope")}, nil
	}

	identity, err := v.Resources.FindIdentityResourcesByScopeName(ctx, names)
	if err != nil {
		return ScopeResult{}, err
	}
	apiScopes, err := v.Resources.FindAPIScopesByName(ctx, names)
	if err != nil {
		return ScopeResult{}, err
	}
	apiResources, err := v.Resources.FindAPIResourcesByScopeName(ctx, names)
	if err != nil {
		return ScopeResult{}, err
	}
	out.Resources = domain.Resources{
		IdentityResources: identity,
		APIScopes:         apiScopes,
		APIResources:      apiResources,
	}

	for _, name := range names {
		ir := out.Resources.FindIdentityResource(name)
		as := out.Resources.FindAPIScope(name)
		switch {
		case ir != nil && ir.Enabled, as != nil && as.Enabled:
		default:
			return ScopeResult{Result: fail(oidc.ErrorInvalidScope, "unknown scope: "+name)}, nil
		}
	}
	return out, nil
}
