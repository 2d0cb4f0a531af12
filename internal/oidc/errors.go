package oidc

// OAuth2/OIDC protocol error codes (RFC 6749 §5.2, RFC 8628 §3.5, OIDC Core §3.1.2.6).
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorInvalidScope            = "invalid_scope"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorAccessDenied            = "access_denied"
	ErrorLoginRequired           = "login_required"
	ErrorConsentRequired         = "consent_required"
	ErrorInteractionRequired     = "interaction_required"
	ErrorAuthorizationPending    = "authorization_pending"
	ErrorSlowDown                = "slow_down"
	ErrorExpiredToken            = "expired_token"
	ErrorServerError             = "server_error"
)
