package oidc

import (
	"sort"
	"strings"
)

// NormalizeResponseType ordena los componentes de un response_type compuesto
// para que "id_token code" y "code id_token" comparen igual.
func NormalizeResponseType(raw string) string {
	parts := strings.Fields(raw)
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// ResponseTypeHas indica si el response_type (posiblemente compuesto) incluye
// el componente dado.
func ResponseTypeHas(responseType, component string) bool {
	for _, p := range strings.Fields(responseType) {
		if p == component {
			return true
		}
	}
	return false
}
