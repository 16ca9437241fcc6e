package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means no token is stored; callers should start a
	// login flow.
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	// ErrOAuthTimeout means the device or PKCE flow exceeded its deadline
	// without the user completing authorization.
	ErrOAuthTimeout = errors.New("auth: authorization timed out")
	// ErrOAuthDenied means the identity provider reported the authorization
	// request was explicitly rejected.
	ErrOAuthDenied = errors.New("auth: authorization denied")
	// ErrRegistrationExpired means the stored client registration can no
	// longer be used and a fresh RegisterClient call is required.
	ErrRegistrationExpired = errors.New("auth: client registration expired")
	// ErrFlowMismatch means the stored client registration was minted for
	// a different flow than the token; a refresh against mismatched
	// client credentials is never attempted.
	ErrFlowMismatch = errors.New("auth: registration flow does not match token flow")
)

// OAuthStateMismatch is returned by the PKCE flow when the loopback
// callback's state parameter does not match the one generated at flow
// start, which would otherwise allow a cross-site request forgery against
// the local callback listener.
type OAuthStateMismatch struct {
	Expected string
	Actual   string
}

func (e *OAuthStateMismatch) Error() string {
	return fmt.Sprintf("auth: oauth state mismatch: expected %q, got %q", e.Expected, e.Actual)
}
