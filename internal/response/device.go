package response

import (
	"context"
	"net/url"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/storage/serialization"
	"github.com/dropDatabas3/janus/internal/validation"
)

// DeviceAuthorizationResponse es el body JSON del device authorization
// endpoint (RFC 8628 §3.2).
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DeviceResponder arranca un device flow: acuña el par device_code/user_code.
type DeviceResponder struct {
	Devices   *grants.DeviceCodeStore
	Lifetimes Lifetimes
	// VerificationURI es la página donde el usuario teclea el user_code.
	VerificationURI string
	// Interval es el mínimo entre polls, en segundos.
	Interval int
}

func NewDeviceResponder(devices *grants.DeviceCodeStore, lifetimes Lifetimes, verificationURI string, interval int) *DeviceResponder {
	if interval <= 0 {
		interval = 5
	}
	return &DeviceResponder{Devices: devices, Lifetimes: lifetimes, VerificationURI: verificationURI, Interval: interval}
}

func (g *DeviceResponder) Respond(ctx context.Context, req *validation.ValidatedDeviceAuthorizationRequest) (*DeviceAuthorizationResponse, error) {
	lifetime := g.Lifetimes.deviceCode(req.Client)
	payload := &serialization.DeviceCode{
		ClientID:        req.Client.ClientID,
		RequestedScopes: req.RequestedScopes,
		Interval:        g.Interval,
	}
	deviceCode, userCode, err := g.Devices.Issue(ctx, payload, lifetime)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("device authorization started", logger.ClientID(req.Client.ClientID))

	complete := ""
	if g.VerificationURI != "" {
		complete = g.VerificationURI + "?user_code=" + url.QueryEscape(userCode)
	}
	return &DeviceAuthorizationResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         g.VerificationURI,
		VerificationURIComplete: complete,
		ExpiresIn:               int(lifetime / time.Second),
		Interval:                g.Interval,
	}, nil
}
