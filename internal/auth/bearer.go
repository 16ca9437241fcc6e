package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigV4ModeEnv switches the CLI from OIDC bearer tokens to an
// externally-managed identity: when set, login is skipped and the
// ambient credentials drive requests instead.
const SigV4ModeEnv = "AMAZON_Q_SIGV4"

// SigV4Mode reports whether the alternate auth mode is active.
func SigV4Mode() bool {
	return os.Getenv(SigV4ModeEnv) != ""
}

// BearerInfo is what doctor/whoami can report about an
// externally-supplied bearer token without verifying its signature:
// verification belongs to the remote service; locally only the expiry
// and subject matter for diagnostics.
type BearerInfo struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// InspectBearer decodes an externally-supplied JWT bearer token's
// claims. The signature is deliberately NOT verified.
func InspectBearer(token string) (BearerInfo, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return BearerInfo{}, fmt.Errorf("auth: parse bearer token: %w", err)
	}
	info := BearerInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		info.Issuer = iss
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// Expired applies the same one-minute buffer as the OIDC token record.
func (b BearerInfo) Expired(now time.Time) bool {
	if b.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(b.ExpiresAt.Add(-expiryBuffer))
}
