package auth

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/stretchr/testify/require"

	"github.com/shellmind/cli/internal/secretstore"
)

type fakeOIDCClient struct {
	pendingCalls int
	slowDownOnce bool
	refreshCalls int
}

func (f *fakeOIDCClient) RegisterClient(_ context.Context, _ *ssooidc.RegisterClientInput, _ ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	return &ssooidc.RegisterClientOutput{
		ClientId:              aws.String("client-id"),
		ClientSecret:          aws.String("client-secret"),
		ClientSecretExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}, nil
}

func (f *fakeOIDCClient) StartDeviceAuthorization(_ context.Context, _ *ssooidc.StartDeviceAuthorizationInput, _ ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error) {
	return &ssooidc.StartDeviceAuthorizationOutput{
		DeviceCode:      aws.String("device-code"),
		UserCode:        aws.String("ABCD-1234"),
		VerificationUri: aws.String("https://example.com/device"),
		ExpiresIn:       60,
		Interval:        1,
	}, nil
}

func (f *fakeOIDCClient) CreateToken(_ context.Context, params *ssooidc.CreateTokenInput, _ ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	if aws.ToString(params.GrantType) == "refresh_token" {
		f.refreshCalls++
	}
	if aws.ToString(params.GrantType) == "urn:ietf:params:oauth:grant-type:device_code" {
		if f.slowDownOnce {
			f.slowDownOnce = false
			return nil, &types.SlowDownException{Message: aws.String("slow down")}
		}
		if f.pendingCalls < 2 {
			f.pendingCalls++
			return nil, &types.AuthorizationPendingException{Message: aws.String("pending")}
		}
	}
	return &ssooidc.CreateTokenOutput{
		AccessToken:  aws.String("access-token"),
		RefreshToken: aws.String("refresh-token"),
		ExpiresIn:    3600,
	}, nil
}

func newTestManager(t *testing.T, client OIDCClient) *Manager {
	t.Helper()
	m := NewManager(secretstore.NewMemoryStore(), nil)
	m.newClient = func(ctx context.Context, region string) (OIDCClient, error) {
		return client, nil
	}
	return m
}

func TestDeviceLoginPollsUntilApproved(t *testing.T) {
	client := &fakeOIDCClient{}
	m := newTestManager(t, client)

	var verify DeviceFlowResult
	token, err := m.Login(context.Background(), LoginOptions{
		OnVerify: func(r DeviceFlowResult) { verify = r },
	})
	require.NoError(t, err)
	require.Equal(t, "access-token", token.AccessToken)
	require.Equal(t, "ABCD-1234", verify.UserCode)
	require.Equal(t, 2, client.pendingCalls)
}

func TestDeviceLoginHandlesSlowDown(t *testing.T) {
	client := &fakeOIDCClient{slowDownOnce: true}
	m := newTestManager(t, client)

	token, err := m.Login(context.Background(), LoginOptions{})
	require.NoError(t, err)
	require.Equal(t, "access-token", token.AccessToken)
}

func TestTokenRefreshesWhenExpired(t *testing.T) {
	client := &fakeOIDCClient{}
	m := newTestManager(t, client)

	_, err := m.Login(context.Background(), LoginOptions{})
	require.NoError(t, err)

	stored, err := m.LoadToken(context.Background())
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, m.saveToken(context.Background(), stored))

	refreshed, err := m.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-token", refreshed.AccessToken)
}

func TestRefreshSkippedOnFlowMismatch(t *testing.T) {
	client := &fakeOIDCClient{}
	m := newTestManager(t, client)

	token, err := m.Login(context.Background(), LoginOptions{})
	require.NoError(t, err)
	require.Equal(t, FlowDeviceCode, token.Flow)

	// The registration on disk now belongs to the device-code flow; a
	// stored token minted by the other flow must not be refreshed
	// against its client credentials.
	stored, err := m.LoadToken(context.Background())
	require.NoError(t, err)
	stored.Flow = FlowPKCE
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, m.saveToken(context.Background(), stored))

	_, err = m.Token(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.Zero(t, client.refreshCalls)

	// The token itself is left in place, not cleared.
	kept, err := m.LoadToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, stored.AccessToken, kept.AccessToken)
}

func TestLogoutClearsTokenButKeepsRegistration(t *testing.T) {
	client := &fakeOIDCClient{}
	m := newTestManager(t, client)

	_, err := m.Login(context.Background(), LoginOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background()))
	_, err = m.LoadToken(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, ok, err := m.loadRegistration(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegistrationScopeMismatchForcesReRegister(t *testing.T) {
	reg := DeviceRegistration{
		Region: "us-east-1",
		Flow:   FlowDeviceCode,
		Scopes: []string{"a", "b"},
	}
	require.True(t, reg.Valid(time.Now(), "us-east-1", FlowDeviceCode, []string{"b", "a"}))
	require.False(t, reg.Valid(time.Now(), "us-east-1", FlowDeviceCode, []string{"a"}))
	require.False(t, reg.Valid(time.Now(), "us-west-2", FlowDeviceCode, []string{"a", "b"}))
	require.False(t, reg.Valid(time.Now(), "us-east-1", FlowPKCE, []string{"a", "b"}))
}

func TestTokenExpiredAppliesBuffer(t *testing.T) {
	tok := Token{ExpiresAt: time.Now().Add(30 * time.Second)}
	require.True(t, tok.Expired(time.Now()))
	tok.ExpiresAt = time.Now().Add(5 * time.Minute)
	require.False(t, tok.Expired(time.Now()))
}
