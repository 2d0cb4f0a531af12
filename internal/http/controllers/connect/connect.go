// Package connect implementa los endpoints de protocolo OAuth2/OIDC bajo
// /connect/*. Los controllers son delgados: parsean el form, delegan en el
// validator y el response generator, y escriben JSON o redirect.
package connect

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
)

// maxFormBytes limita el body de los endpoints form-encoded.
const maxFormBytes = 64 << 10

type protocolError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProtocolError escribe el error OAuth con el status que le corresponde.
// invalid_client lleva 401 + WWW-Authenticate por RFC 6749 §5.2.
func writeProtocolError(w http.ResponseWriter, code, description string) {
	status := http.StatusBadRequest
	if code == oidc.ErrorInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		status = http.StatusUnauthorized
	}
	if code == oidc.ErrorServerError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, protocolError{Error: code, ErrorDescription: description})
}

// writeServerError loguea el error real y manda un server_error genérico:
// los detalles internos nunca viajan en error_description.
func writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	logger.From(r.Context()).Error("endpoint failure", logger.Err(err), logger.Path(r.URL.Path))
	writeProtocolError(w, oidc.ErrorServerError, "an unexpected error occurred")
}

// parseForm aplica el límite de tamaño y parsea. Retorna false si el body es
// inválido (la respuesta ya quedó escrita).
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		logger.From(r.Context()).Warn("failed to parse form", logger.Err(err))
		writeProtocolError(w, oidc.ErrorInvalidRequest, "invalid form data")
		return false
	}
	return true
}

// requirePost corta métodos que no sean POST.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeProtocolError(w, oidc.ErrorInvalidRequest, "only POST is allowed")
		return false
	}
	return true
}
