package connect

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/janus/internal/audit"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/oidc"
	"github.com/dropDatabas3/janus/internal/session"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
)

// InteractionController expone la API que consumen las pantallas del host:
// aceptar/rechazar consentimiento, aprobar/denegar device flows y revocar
// grants de un usuario. Todas requieren sesión autenticada.
type InteractionController struct {
	Sessions        session.Reader
	Consents        *grants.UserConsentStore
	Devices         *grants.DeviceCodeStore
	Grants          storage.GrantStore
	Audit           *audit.Recorder
	ConsentLifetime time.Duration
}

func NewInteractionController(sessions session.Reader, consents *grants.UserConsentStore, devices *grants.DeviceCodeStore, store storage.GrantStore, rec *audit.Recorder, consentLifetime time.Duration) *InteractionController {
	return &InteractionController{
		Sessions: sessions, Consents: consents, Devices: devices,
		Grants: store, Audit: rec, ConsentLifetime: consentLifetime,
	}
}

func (c *InteractionController) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, err := c.Sessions.Current(r.Context(), r)
	if err != nil {
		writeServerError(w, r, err)
		return nil
	}
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, protocolError{Error: oidc.ErrorLoginRequired, ErrorDescription: "authentication required"})
		return nil
	}
	return sess
}

// Consent maneja POST /interaction/consent: el usuario acepta o rechaza los
// scopes de un client. Form: client_id, scope (space-separated), decision.
func (c *InteractionController) Consent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}
	sess := c.currentSession(w, r)
	if sess == nil {
		return
	}
	clientID := r.PostForm.Get(oidc.ParamClientID)
	if clientID == "" {
		writeProtocolError(w, oidc.ErrorInvalidRequest, "client_id is required")
		return
	}

	if r.PostForm.Get("decision") != "accept" {
		if err := c.Consents.Remove(ctx, clientID, sess.SubjectID); err != nil {
			writeServerError(w, r, err)
			return
		}
		if c.Audit != nil {
			c.Audit.Record(ctx, audit.Event{
				Name: audit.EventConsentDenied, ClientID: clientID, SubjectID: sess.SubjectID,
			})
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
		return
	}

	scopes := strings.Fields(r.PostForm.Get(oidc.ParamScope))
	if len(scopes) == 0 {
		writeProtocolError(w, oidc.ErrorInvalidRequest, "scope is required")
		return
	}
	err := c.Consents.Store(ctx, &serialization.Consent{
		SubjectID: sess.SubjectID,
		ClientID:  clientID,
		Scopes:    scopes,
	}, c.ConsentLifetime)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	logger.From(ctx).Info("consent granted",
		logger.ClientID(clientID), logger.SubjectID(sess.SubjectID))
	if c.Audit != nil {
		c.Audit.Record(ctx, audit.Event{
			Name: audit.EventConsentGranted, ClientID: clientID, SubjectID: sess.SubjectID,
			Detail: map[string]any{"scopes": scopes},
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

// Device maneja POST /interaction/device: el usuario teclea el user_code y
// aprueba o deniega el device flow. Form: user_code, decision, scope.
func (c *InteractionController) Device(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}
	sess := c.currentSession(w, r)
	if sess == nil {
		return
	}
	userCode := strings.ToUpper(strings.TrimSpace(r.PostForm.Get("user_code")))
	if userCode == "" {
		writeProtocolError(w, oidc.ErrorInvalidRequest, "user_code is required")
		return
	}
	dc, err := c.Devices.FindByUserCode(ctx, userCode)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	if dc == nil || dc.Status != serialization.DeviceStatusPending {
		writeProtocolError(w, oidc.ErrorInvalidRequest, "unknown or already decided user code")
		return
	}

	if r.PostForm.Get("decision") != "approve" {
		if err := c.Devices.Deny(ctx, userCode); err != nil {
			writeServerError(w, r, err)
			return
		}
		if c.Audit != nil {
			c.Audit.Record(ctx, audit.Event{
				Name: audit.EventDeviceAuthorizationDenied, ClientID: dc.ClientID, SubjectID: sess.SubjectID,
			})
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
		return
	}

	// Los scopes aprobados pueden ser un subconjunto de los pedidos.
	approved := strings.Fields(r.PostForm.Get(oidc.ParamScope))
	if len(approved) == 0 {
		approved = dc.RequestedScopes
	}
	subject := sess.Subject()
	if err := c.Devices.Approve(ctx, userCode, &subject, approved); err != nil {
		writeServerError(w, r, err)
		return
	}
	logger.From(ctx).Info("device flow approved",
		logger.ClientID(dc.ClientID), logger.SubjectID(sess.SubjectID))
	if c.Audit != nil {
		c.Audit.Record(ctx, audit.Event{
			Name: audit.EventDeviceAuthorization, ClientID: dc.ClientID, SubjectID: sess.SubjectID,
			Detail: map[string]any{"scopes": approved},
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// RevokeGrants maneja POST /interaction/grants/revoke: borra todos los grants
// del usuario actual, opcionalmente acotado a un client. El filtro nunca
// queda vacío: siempre lleva el subject de la sesión.
func (c *InteractionController) RevokeGrants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requirePost(w, r) || !parseForm(w, r) {
		return
	}
	sess := c.currentSession(w, r)
	if sess == nil {
		return
	}
	filter := storage.Filter{
		SubjectID: sess.SubjectID,
		ClientID:  r.PostForm.Get(oidc.ParamClientID),
	}
	if err := c.Grants.RemoveAll(ctx, filter); err != nil {
		writeServerError(w, r, err)
		return
	}
	logger.From(ctx).Info("grants revoked", logger.SubjectID(sess.SubjectID))
	if c.Audit != nil {
		c.Audit.Record(ctx, audit.Event{
			Name: audit.EventGrantsRevoked, SubjectID: sess.SubjectID, ClientID: filter.ClientID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
