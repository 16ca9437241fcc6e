package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shellmind/cli/internal/secretstore"
)

// Manager is the C2 auth manager: it owns the client registration and
// token lifecycle, backed by a secretstore.Store.
type Manager struct {
	store  secretstore.Store
	logger *slog.Logger

	newClient func(ctx context.Context, region string) (OIDCClient, error)
}

// NewManager builds a Manager backed by store.
func NewManager(store secretstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger, newClient: NewOIDCClient}
}

// LoginOptions configures a login attempt.
type LoginOptions struct {
	Region   string
	StartURL string
	UsePKCE  bool
	Scopes   []string
	OnVerify func(DeviceFlowResult) // device-code flow only
	OnURL    func(url string)       // PKCE flow only
}

func (o LoginOptions) normalized() LoginOptions {
	if o.Region == "" {
		o.Region = defaultRegion
	}
	if o.StartURL == "" {
		o.StartURL = defaultStartURL
	}
	if len(o.Scopes) == 0 {
		o.Scopes = DefaultScopes
	}
	return o
}

// Login runs the device-code or PKCE flow per opts, persists the resulting
// registration and token, and returns the token.
func (m *Manager) Login(ctx context.Context, opts LoginOptions) (Token, error) {
	opts = opts.normalized()
	flow := FlowDeviceCode
	if opts.UsePKCE {
		flow = FlowPKCE
	}

	client, err := m.newClient(ctx, opts.Region)
	if err != nil {
		return Token{}, err
	}

	reg, err := m.loadOrRegister(ctx, client, opts, flow)
	if err != nil {
		return Token{}, err
	}

	var token Token
	switch flow {
	case FlowPKCE:
		token, err = NewPKCEAuthorizer(client).Run(ctx, reg, opts.OnURL)
	default:
		authorizer := NewDeviceAuthorizer(client, m.logger)
		result, deviceCode, interval, startErr := authorizer.StartDeviceAuthorization(ctx, reg)
		if startErr != nil {
			return Token{}, startErr
		}
		if opts.OnVerify != nil {
			opts.OnVerify(result)
		}
		token, err = authorizer.PollForToken(ctx, reg, deviceCode, interval, result.ExpiresAt)
	}
	if err != nil {
		return Token{}, err
	}

	if err := m.saveToken(ctx, token); err != nil {
		return Token{}, err
	}
	return token, nil
}

func (m *Manager) loadOrRegister(ctx context.Context, client OIDCClient, opts LoginOptions, flow FlowType) (DeviceRegistration, error) {
	now := time.Now()
	if existing, ok, err := m.loadRegistration(ctx); err == nil && ok {
		if existing.Valid(now, opts.Region, flow, opts.Scopes) {
			return existing, nil
		}
	}

	var reg DeviceRegistration
	var err error
	if flow == FlowPKCE {
		_, redirectURI, lerr := loopbackListener()
		if lerr != nil {
			return DeviceRegistration{}, lerr
		}
		reg, err = NewPKCEAuthorizer(client).RegisterClient(ctx, opts.Region, opts.StartURL, redirectURI, opts.Scopes)
	} else {
		reg, err = NewDeviceAuthorizer(client, m.logger).RegisterClient(ctx, opts.Region, opts.StartURL, opts.Scopes)
	}
	if err != nil {
		return DeviceRegistration{}, err
	}
	if err := m.saveRegistration(ctx, reg); err != nil {
		return DeviceRegistration{}, err
	}
	return reg, nil
}

func (m *Manager) loadRegistration(ctx context.Context) (DeviceRegistration, bool, error) {
	raw, ok, err := m.store.Get(ctx, secretstore.KeyDeviceRegistration)
	if err != nil || !ok {
		return DeviceRegistration{}, ok, err
	}
	var reg DeviceRegistration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return DeviceRegistration{}, false, fmt.Errorf("auth: decode registration: %w", err)
	}
	return reg, true, nil
}

func (m *Manager) saveRegistration(ctx context.Context, reg DeviceRegistration) error {
	raw, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("auth: encode registration: %w", err)
	}
	return m.store.Set(ctx, secretstore.KeyDeviceRegistration, raw)
}

func (m *Manager) saveToken(ctx context.Context, token Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("auth: encode token: %w", err)
	}
	return m.store.Set(ctx, secretstore.KeyToken, raw)
}

// LoadToken returns the currently stored token without refreshing it.
func (m *Manager) LoadToken(ctx context.Context) (Token, error) {
	raw, ok, err := m.store.Get(ctx, secretstore.KeyToken)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, ErrNotAuthenticated
	}
	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return Token{}, fmt.Errorf("auth: decode token: %w", err)
	}
	return token, nil
}

// Token returns a valid, non-expired token, refreshing it first if needed.
func (m *Manager) Token(ctx context.Context) (Token, error) {
	return m.TokenForce(ctx, false)
}

// TokenForce is Token with an explicit refresh override. A refresh
// failure other than slow_down clears the stored token so the next call
// starts a fresh login rather than retrying a dead refresh token forever.
func (m *Manager) TokenForce(ctx context.Context, forceRefresh bool) (Token, error) {
	token, err := m.LoadToken(ctx)
	if err != nil {
		return Token{}, err
	}
	if !forceRefresh && !token.Expired(time.Now()) {
		return token, nil
	}
	if token.RefreshToken == "" {
		_ = m.Logout(ctx)
		return Token{}, ErrNotAuthenticated
	}

	client, err := m.newClient(ctx, token.Region)
	if err != nil {
		return Token{}, err
	}
	refreshed, err := m.refresh(ctx, client, token)
	if err != nil {
		if errors.Is(err, ErrFlowMismatch) {
			// The registration was re-minted for the other flow; the
			// token is left alone and the user starts a fresh login.
			m.logger.Warn("stored registration flow does not match token flow, skipping refresh")
			return Token{}, ErrNotAuthenticated
		}
		if classifyTokenError(err) != tokenErrSlowDown {
			_ = m.Logout(ctx)
		}
		return Token{}, err
	}
	if err := m.saveToken(ctx, refreshed); err != nil {
		return Token{}, err
	}
	return refreshed, nil
}

func (m *Manager) refresh(ctx context.Context, client OIDCClient, token Token) (Token, error) {
	reg, ok, err := m.loadRegistration(ctx)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, ErrRegistrationExpired
	}
	if token.Flow != "" && reg.Flow != token.Flow {
		return Token{}, ErrFlowMismatch
	}
	return refreshToken(ctx, client, reg, token)
}

// Logout clears the stored token. The device/client registration is kept:
// it is reusable for the next login as long as it has not itself expired.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Delete(ctx, secretstore.KeyToken)
}

// Whoami reports the stored token's identity without contacting the
// network, returning ErrNotAuthenticated if no token is stored.
func (m *Manager) Whoami(ctx context.Context) (Token, error) {
	token, err := m.LoadToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return Token{}, err
		}
		return Token{}, err
	}
	return token, nil
}
