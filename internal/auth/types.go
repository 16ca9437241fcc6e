// Package auth implements the OAuth device-code (RFC 8628) and PKCE
// (RFC 7636) login flows against the remote SSO-OIDC identity provider, plus
// the refresh/expiry scheduling needed to keep a bearer token usable between
// chat turns.
package auth

import (
	"time"
)

// TokenType distinguishes the public Builder ID start URL from a private
// IAM Identity Center start URL; callers use it to decide what "whoami"
// should report and whether internal-only affordances apply.
type TokenType string

const (
	TokenTypeBuilderID          TokenType = "BuilderId"
	TokenTypeIAMIdentityCenter  TokenType = "IamIdentityCenter"
	defaultStartURL                       = "https://view.awsapps.com/start"
	defaultRegion                         = "us-east-1"
	expiryBuffer                          = time.Minute
)

// internalStartURL, when non-empty, marks a start URL as belonging to an
// internal identity provider. Left empty in this build: no internal
// affordance is baked into the open implementation, but whoami/doctor can
// still ask IsInternalUser without special-casing a missing constant.
var internalStartURL = ""

// BuilderIDStartURL returns the default public start URL used when the user
// has not registered against a private IAM Identity Center instance.
func BuilderIDStartURL() string { return defaultStartURL }

// Token is the persisted bearer-token record. Flow records which grant
// minted it; a token is only ever refreshed through a registration of
// the same flow.
type Token struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Region       string    `json:"region"`
	StartURL     string    `json:"startUrl"`
	Flow         FlowType  `json:"flow,omitempty"`
	Scopes       []string  `json:"scopes"`
}

// Type derives the token's provenance from its start URL.
func (t Token) Type() TokenType {
	if t.StartURL == "" || t.StartURL == defaultStartURL {
		return TokenTypeBuilderID
	}
	return TokenTypeIAMIdentityCenter
}

// IsInternalUser reports whether the token was issued against the internal
// start URL constant, mirroring the original client's is_amzn_user check.
func (t Token) IsInternalUser() bool {
	return internalStartURL != "" && t.StartURL == internalStartURL
}

// Expired reports whether the token is expired, applying a one-minute
// buffer so a request does not race a token that expires mid-flight.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-expiryBuffer))
}

// DeviceRegistration is the persisted OIDC client registration record
// . A registration is only reusable while its
// region, flow, and scope set all match the currently requested login.
type DeviceRegistration struct {
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Region       string    `json:"region"`
	StartURL     string    `json:"startUrl"`
	Flow         FlowType  `json:"flow"`
	Scopes       []string  `json:"scopes"`
}

// Expired reports whether the registration itself has expired. A
// registration with no recorded expiry never expires.
func (r DeviceRegistration) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt.Add(-expiryBuffer))
}

// Valid reports whether r can be reused for a login with the given region,
// flow, and scope set. Scopes are compared as a set, independent of order,
// per the "scope set must equal the currently requested scope set" rule.
func (r DeviceRegistration) Valid(now time.Time, region string, flow FlowType, scopes []string) bool {
	if r.Expired(now) {
		return false
	}
	if r.Region != region || r.Flow != flow {
		return false
	}
	return sameScopeSet(r.Scopes, scopes)
}

func sameScopeSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
		delete(set, s)
	}
	return len(set) == 0
}

// FlowType distinguishes the device-code flow from the PKCE flow. A
// registration minted for one flow cannot be reused for the other.
type FlowType string

const (
	FlowDeviceCode FlowType = "device-code"
	FlowPKCE       FlowType = "pkce"
)

// DefaultScopes is the scope set requested for both flows.
var DefaultScopes = []string{"codewhisperer:completions", "codewhisperer:analysis"}
