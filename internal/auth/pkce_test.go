package auth

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startPKCE runs the flow in the background and returns the parsed
// authorize URL once it is announced.
func startPKCE(t *testing.T, ctx context.Context) (*url.URL, chan error, chan Token) {
	t.Helper()
	client := &fakeOIDCClient{}
	authorizer := NewPKCEAuthorizer(client)
	reg := DeviceRegistration{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Region:       "us-east-1",
		StartURL:     "https://example.awsapps.com/start",
		Flow:         FlowPKCE,
		Scopes:       DefaultScopes,
	}

	urlCh := make(chan string, 1)
	errCh := make(chan error, 1)
	tokenCh := make(chan Token, 1)
	go func() {
		token, err := authorizer.Run(ctx, reg, func(u string) { urlCh <- u })
		errCh <- err
		tokenCh <- token
	}()

	select {
	case raw := <-urlCh:
		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		return parsed, errCh, tokenCh
	case <-time.After(2 * time.Second):
		t.Fatal("authorize URL never announced")
		return nil, nil, nil
	}
}

func redirectCallback(t *testing.T, authorizeURL *url.URL, params url.Values) {
	t.Helper()
	redirect, err := url.Parse(authorizeURL.Query().Get("redirect_uri"))
	require.NoError(t, err)
	redirect.RawQuery = params.Encode()
	resp, err := http.Get(redirect.String())
	require.NoError(t, err)
	resp.Body.Close()
}

func TestPKCEFlowExchangesCode(t *testing.T) {
	authorizeURL, errCh, tokenCh := startPKCE(t, context.Background())
	require.Equal(t, "code", authorizeURL.Query().Get("response_type"))
	require.Equal(t, "S256", authorizeURL.Query().Get("code_challenge_method"))
	require.NotEmpty(t, authorizeURL.Query().Get("code_challenge"))

	redirectCallback(t, authorizeURL, url.Values{
		"code":  {"auth-code"},
		"state": {authorizeURL.Query().Get("state")},
	})

	require.NoError(t, <-errCh)
	token := <-tokenCh
	require.Equal(t, "access-token", token.AccessToken)
	require.Equal(t, FlowPKCE, token.Flow)
}

// A redirect carrying the wrong state fails with OAuthStateMismatch.
func TestPKCEStateMismatchIsRejected(t *testing.T) {
	authorizeURL, errCh, _ := startPKCE(t, context.Background())

	redirectCallback(t, authorizeURL, url.Values{
		"code":  {"auth-code"},
		"state": {"forged-state"},
	})

	err := <-errCh
	var mismatch *OAuthStateMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "forged-state", mismatch.Actual)
}

func TestPKCEDeniedByProvider(t *testing.T) {
	authorizeURL, errCh, _ := startPKCE(t, context.Background())

	redirectCallback(t, authorizeURL, url.Values{
		"error":             {"access_denied"},
		"error_description": {"the user said no"},
	})

	err := <-errCh
	require.Error(t, err)
	require.Contains(t, err.Error(), "denied")
}

func TestPKCECancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, errCh, _ := startPKCE(t, ctx)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}
