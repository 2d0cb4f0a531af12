package connect

// Controllers agrupa los controllers de los endpoints de protocolo.
type Controllers struct {
	Authorize   *AuthorizeController
	Token       *TokenController
	Device      *DeviceAuthorizationController
	EndSession  *EndSessionController
	Introspect  *IntrospectController
	Revoke      *RevokeController
	Discovery   *DiscoveryController
	Interaction *InteractionController
}
