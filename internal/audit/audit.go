// Package audit registra eventos de seguridad como side channel asíncrono y
// best-effort: un fallo al escribir un evento nunca falla el request que lo
// originó.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// Event names. Estables: los SIEM filtran por estos valores.
const (
	EventTokenIssued               = "token_issued"
	EventTokenRevoked              = "token_revoked"
	EventClientAuthFailure         = "client_authentication_failure"
	EventConsentGranted            = "consent_granted"
	EventConsentDenied             = "consent_denied"
	EventDeviceAuthorization       = "device_authorization_success"
	EventDeviceAuthorizationDenied = "device_authorization_denied"
	EventGrantsRevoked             = "grants_revoked"
	EventEndSession                = "end_session"
)

// Event es una entrada del audit trail.
type Event struct {
	Name      string
	ClientID  string
	SubjectID string
	Detail    map[string]any
	At        time.Time
}

// Sink recibe eventos. Implementaciones deben ser no bloqueantes o rápidas.
type Sink interface {
	Write(ev Event)
}

// Recorder encola eventos hacia un Sink en una goroutine propia. Si la cola
// está llena el evento se descarta: best-effort por contrato.
type Recorder struct {
	ch   chan Event
	sink Sink
	done chan struct{}
}

func NewRecorder(sink Sink) *Recorder {
	r := &Recorder{
		ch:   make(chan Event, 256),
		sink: sink,
		done: make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)
	for ev := range r.ch {
		r.sink.Write(ev)
	}
}

// Record encola un evento. Nunca bloquea.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case r.ch <- ev:
	default:
		logger.From(ctx).Warn("audit queue full, event dropped", logger.String("event", ev.Name))
	}
}

// Close deja de aceptar eventos y bloquea hasta que el sink consumió todo lo
// encolado: nada en vuelo se pierde en el shutdown.
func (r *Recorder) Close() {
	close(r.ch)
	<-r.done
}

// ZapSink escribe eventos como líneas estructuradas en el logger.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink() *ZapSink {
	return &ZapSink{log: logger.Named("audit")}
}

func (s *ZapSink) Write(ev Event) {
	fields := []zap.Field{
		zap.String("event", ev.Name),
		zap.Time("at", ev.At),
	}
	if ev.ClientID != "" {
		fields = append(fields, zap.String("client_id", ev.ClientID))
	}
	if ev.SubjectID != "" {
		fields = append(fields, zap.String("sub", ev.SubjectID))
	}
	for k, v := range ev.Detail {
		fields = append(fields, zap.Any(k, v))
	}
	s.log.Info("audit", fields...)
}
