package auth

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/aws/smithy-go"
)

// OIDCClient is the subset of ssooidc.Client this package depends on,
// narrowed to an interface so tests can substitute a fake without touching
// the network.
type OIDCClient interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// NewOIDCClient builds a real ssooidc client for the given region.
func NewOIDCClient(ctx context.Context, region string) (OIDCClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("auth: load aws config: %w", err)
	}
	return ssooidc.NewFromConfig(cfg), nil
}

// classifyTokenError maps a CreateToken error to the polling/fatal
// distinction the device and PKCE flows both need: authorization_pending
// means "keep polling", slow_down means "keep polling, back off, and do
// not clear the stored token", anything else is fatal.
type tokenErrClass int

const (
	tokenErrFatal tokenErrClass = iota
	tokenErrPending
	tokenErrSlowDown
)

func classifyTokenError(err error) tokenErrClass {
	var pending *types.AuthorizationPendingException
	if errors.As(err, &pending) {
		return tokenErrPending
	}
	var slow *types.SlowDownException
	if errors.As(err, &slow) {
		return tokenErrSlowDown
	}
	return tokenErrFatal
}

// isExpiredToken reports whether err indicates the device/authorization
// code itself expired, distinct from a fatal error on an otherwise-healthy
// code (used to decide whether a friendlier "restart login" message should
// be shown).
func isExpiredToken(err error) bool {
	var expired *types.ExpiredTokenException
	return errors.As(err, &expired)
}

// apiErrorCode extracts the smithy error code for logging, e.g.
// "InvalidGrantException".
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
