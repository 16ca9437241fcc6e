// Package secretstore persists the device registration and bearer token
// records the auth manager needs across process restarts.
//
// Values are opaque byte blobs keyed by string. Callers never see the
// backend: a file-backed store encrypts at rest, an in-memory store backs
// tests.
package secretstore

import (
	"context"
	"errors"
)

// ErrNotFound names a key with no stored value. The stores in this package
// do not return it from Get, which reports a missing key as ok=false with
// a nil error; a missing token simply means the user has not logged in yet.
var ErrNotFound = errors.New("secretstore: key not found")

// Reserved keys used by the auth manager.
const (
	KeyDeviceRegistration = "codewhisperer:odic:device-registration"
	KeyToken              = "codewhisperer:odic:token"
)

// Store persists opaque secret blobs.
type Store interface {
	// Get returns the stored value for key, or ok=false if absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
