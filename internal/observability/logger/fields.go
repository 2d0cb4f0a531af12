package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar del protocolo. Mantener los nombres estables: los dashboards
// filtran por estos keys.

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// ClientID crea un campo para el client OAuth.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// SubjectID crea un campo para el subject (usuario) autenticado.
func SubjectID(v string) zap.Field { return zap.String("sub", v) }

// SessionID crea un campo para la sesión de autenticación.
func SessionID(v string) zap.Field { return zap.String("sid", v) }

// GrantType crea un campo para el grant_type del token endpoint.
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

// Scope crea un campo para los scopes solicitados/otorgados.
func Scope(v string) zap.Field { return zap.String("scope", v) }

// Endpoint crea un campo para el endpoint de protocolo.
func Endpoint(v string) zap.Field { return zap.String("endpoint", v) }

// ProtocolError crea un campo para el código de error OAuth devuelto.
func ProtocolError(v string) zap.Field { return zap.String("protocol_error", v) }

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Duration crea un campo para duraciones.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Count crea un campo para un conteo.
func Count(v int) zap.Field { return zap.Int("count", v) }

// Key crea un campo genérico para una clave (nunca loggear handles crudos).
func Key(v string) zap.Field { return zap.String("key", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code de la respuesta.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Bytes crea un campo para los bytes escritos.
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// DurationMs crea un campo para duraciones en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
