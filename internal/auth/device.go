package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
)

// DeviceFlowResult carries everything the caller needs to show the user a
// verification URL and user code before CreateToken resolves.
type DeviceFlowResult struct {
	VerificationURI         string
	VerificationURIComplete string
	UserCode                string
	ExpiresAt               time.Time
}

// DeviceAuthorizer drives the RFC 8628 device authorization grant against
// a single OIDC client registration.
type DeviceAuthorizer struct {
	client OIDCClient
	logger *slog.Logger
}

// NewDeviceAuthorizer builds a DeviceAuthorizer bound to client.
func NewDeviceAuthorizer(client OIDCClient, logger *slog.Logger) *DeviceAuthorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceAuthorizer{client: client, logger: logger}
}

// RegisterClient registers a new OIDC client for the device-code flow.
func (d *DeviceAuthorizer) RegisterClient(ctx context.Context, region, startURL string, scopes []string) (DeviceRegistration, error) {
	out, err := d.client.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String("shellmind"),
		ClientType: aws.String("public"),
		Scopes:     scopes,
	})
	if err != nil {
		return DeviceRegistration{}, fmt.Errorf("auth: register client: %w", err)
	}
	return DeviceRegistration{
		ClientID:     aws.ToString(out.ClientId),
		ClientSecret: aws.ToString(out.ClientSecret),
		ExpiresAt:    time.Unix(out.ClientSecretExpiresAt, 0),
		Region:       region,
		StartURL:     startURL,
		Flow:         FlowDeviceCode,
		Scopes:       scopes,
	}, nil
}

// StartDeviceAuthorization begins a device-code flow and returns the
// verification URL/user code to show the user, plus the internal device
// code this authorizer will poll CreateToken with.
func (d *DeviceAuthorizer) StartDeviceAuthorization(ctx context.Context, reg DeviceRegistration) (DeviceFlowResult, string, time.Duration, error) {
	out, err := d.client.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		StartUrl:     aws.String(reg.StartURL),
	})
	if err != nil {
		return DeviceFlowResult{}, "", 0, fmt.Errorf("auth: start device authorization: %w", err)
	}
	interval := time.Duration(out.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return DeviceFlowResult{
		VerificationURI:         aws.ToString(out.VerificationUri),
		VerificationURIComplete: aws.ToString(out.VerificationUriComplete),
		UserCode:                aws.ToString(out.UserCode),
		ExpiresAt:               time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}, aws.ToString(out.DeviceCode), interval, nil
}

// PollForToken polls CreateToken on the given interval until the user
// completes authorization, the device code expires, or ctx is cancelled.
// slow_down responses back off the interval without failing the poll;
// any other API error aborts the poll.
func (d *DeviceAuthorizer) PollForToken(ctx context.Context, reg DeviceRegistration, deviceCode string, interval time.Duration, deadline time.Time) (Token, error) {
	for {
		if time.Now().After(deadline) {
			return Token{}, ErrOAuthTimeout
		}
		select {
		case <-ctx.Done():
			return Token{}, ctx.Err()
		case <-time.After(interval):
		}

		out, err := d.client.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(reg.ClientID),
			ClientSecret: aws.String(reg.ClientSecret),
			GrantType:    aws.String("urn:ietf:params:oauth:grant-type:device_code"),
			DeviceCode:   aws.String(deviceCode),
		})
		if err != nil {
			switch classifyTokenError(err) {
			case tokenErrPending:
				continue
			case tokenErrSlowDown:
				interval += 5 * time.Second
				continue
			default:
				if isExpiredToken(err) {
					return Token{}, ErrOAuthTimeout
				}
				d.logger.Warn("device token poll failed", "code", apiErrorCode(err))
				return Token{}, fmt.Errorf("auth: create token: %w", err)
			}
		}

		return Token{
			AccessToken:  aws.ToString(out.AccessToken),
			RefreshToken: aws.ToString(out.RefreshToken),
			ExpiresAt:    time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
			Region:       reg.Region,
			StartURL:     reg.StartURL,
			Flow:         reg.Flow,
			Scopes:       reg.Scopes,
		}, nil
	}
}
