package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"golang.org/x/oauth2"
)

const (
	pkceStateLength       = 10
	pkceStateAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	authorizationDeadline = 3 * time.Minute
)

// pkceVerifier holds the state generated at flow start and checked against
// the loopback callback. The verifier/challenge pair comes from
// golang.org/x/oauth2's RFC 7636 helpers (32 random bytes, base64-url
// without padding, SHA-256 challenge).
type pkceVerifier struct {
	state        string
	codeVerifier string
}

func newPKCEVerifier() (pkceVerifier, error) {
	state, err := randomState()
	if err != nil {
		return pkceVerifier{}, err
	}
	return pkceVerifier{state: state, codeVerifier: oauth2.GenerateVerifier()}, nil
}

func randomState() (string, error) {
	buf := make([]byte, pkceStateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate state: %w", err)
	}
	out := make([]byte, pkceStateLength)
	for i, b := range buf {
		out[i] = pkceStateAlphabet[int(b)%len(pkceStateAlphabet)]
	}
	return string(out), nil
}

// PKCEAuthorizer drives the RFC 7636 authorization-code-with-PKCE flow
// using a loopback HTTP listener to receive the redirect.
type PKCEAuthorizer struct {
	client OIDCClient
}

// NewPKCEAuthorizer builds a PKCEAuthorizer bound to client.
func NewPKCEAuthorizer(client OIDCClient) *PKCEAuthorizer {
	return &PKCEAuthorizer{client: client}
}

// RegisterClient registers a new OIDC client for the PKCE flow, bound to
// the loopback redirect URI.
func (p *PKCEAuthorizer) RegisterClient(ctx context.Context, region, startURL, redirectURI string, scopes []string) (DeviceRegistration, error) {
	out, err := p.client.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName:   aws.String("shellmind"),
		ClientType:   aws.String("public"),
		Scopes:       scopes,
		RedirectUris: []string{redirectURI},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		IssuerUrl:    aws.String(startURL),
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
		Flow:         FlowPKCE,
		Scopes:       scopes,
	}, nil
}

// loopbackListener opens a TCP listener on 127.0.0.1:0 and returns its
// redirect URI, mirroring the original's ephemeral local callback server.
func loopbackListener() (net.Listener, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("auth: open loopback listener: %w", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	return ln, fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", addr.Port), nil
}

// AuthorizationURL builds the browser-facing authorize URL for
// reg/verifier, with the S256 challenge parameters attached.
func AuthorizationURL(reg DeviceRegistration, v pkceVerifier, redirectURI string) string {
	cfg := oauth2.Config{
		ClientID:    reg.ClientID,
		RedirectURL: redirectURI,
		Scopes:      reg.Scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: reg.StartURL + "/authorize"},
	}
	return cfg.AuthCodeURL(v.state, oauth2.S256ChallengeOption(v.codeVerifier))
}

// callbackResult is delivered over a channel from the loopback HTTP
// handler to the flow goroutine once a redirect lands.
type callbackResult struct {
	code  string
	state string
	err   error
}

// awaitCallback starts a one-shot HTTP server on ln and blocks until the
// redirect handler receives a request or ctx is cancelled.
func awaitCallback(ctx context.Context, ln net.Listener) (callbackResult, error) {
	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			resultCh <- callbackResult{err: fmt.Errorf("%w: %s", ErrOAuthDenied, errMsg)}
			fmt.Fprintln(w, "Authorization failed. You may close this tab.")
			return
		}
		resultCh <- callbackResult{code: q.Get("code"), state: q.Get("state")}
		fmt.Fprintln(w, "Login complete. You may close this tab.")
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	select {
	case <-ctx.Done():
		return callbackResult{}, ctx.Err()
	case res := <-resultCh:
		return res, res.err
	}
}

// Run executes the full PKCE flow: opens a loopback listener, prints (via
// onURL) the browser URL to visit, waits for the callback, validates state,
// and exchanges the code for a token.
func (p *PKCEAuthorizer) Run(ctx context.Context, reg DeviceRegistration, onURL func(url string)) (Token, error) {
	ln, redirectURI, err := loopbackListener()
	if err != nil {
		return Token{}, err
	}
	defer ln.Close()

	v, err := newPKCEVerifier()
	if err != nil {
		return Token{}, err
	}

	if onURL != nil {
		onURL(AuthorizationURL(reg, v, redirectURI))
	}

	ctx, cancel := context.WithTimeout(ctx, authorizationDeadline)
	defer cancel()

	cb, err := awaitCallback(ctx, ln)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Token{}, ErrOAuthTimeout
		}
		return Token{}, err
	}
	if cb.state != v.state {
		return Token{}, &OAuthStateMismatch{Expected: v.state, Actual: cb.state}
	}

	out, err := p.client.CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		GrantType:    aws.String("authorization_code"),
		Code:         aws.String(cb.code),
		RedirectUri:  aws.String(redirectURI),
		CodeVerifier: aws.String(v.codeVerifier),
	})
	if err != nil {
		return Token{}, fmt.Errorf("auth: exchange code: %w", err)
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
