package secretstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// FileStore persists secrets as a single ChaCha20-Poly1305-encrypted JSON
// blob at 0600, grounded on the credentials-file pattern used elsewhere in
// the ecosystem (plain-JSON-at-0600), extended here with at-rest encryption
// since stored values are bearer tokens rather than provider API keys.
type FileStore struct {
	mu       sync.Mutex
	path     string
	keyPath  string
	aead     func([]byte) ([]byte, error)
	unseal   func([]byte) ([]byte, error)
	cachedKv map[string][]byte
	loaded   bool
}

// NewFileStore builds a FileStore rooted at dir (typically
// ~/.config/shellmind). The blob lives at dir/secrets.json.enc; the
// symmetric key lives at dir/secrets.key with 0600 permissions and is
// generated on first use.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("secretstore: create dir: %w", err)
	}
	fs := &FileStore{
		path:    filepath.Join(dir, "secrets.json.enc"),
		keyPath: filepath.Join(dir, "secrets.key"),
	}
	key, err := fs.loadOrCreateKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secretstore: init cipher: %w", err)
	}
	fs.aead = func(plaintext []byte) ([]byte, error) {
		nonce := make([]byte, chacha20poly1305.NonceSizeX)
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		return aead.Seal(nonce, nonce, plaintext, nil), nil
	}
	fs.unseal = func(sealed []byte) ([]byte, error) {
		if len(sealed) < chacha20poly1305.NonceSizeX {
			return nil, fmt.Errorf("secretstore: ciphertext too short")
		}
		nonce, ct := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
		return aead.Open(nil, nonce, ct, nil)
	}
	return fs, nil
}

func (f *FileStore) loadOrCreateKey() ([]byte, error) {
	if data, err := os.ReadFile(f.keyPath); err == nil && len(data) == chacha20poly1305.KeySize {
		return data, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secretstore: generate key: %w", err)
	}
	if err := os.WriteFile(f.keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("secretstore: write key: %w", err)
	}
	return key, nil
}

func (f *FileStore) load() (map[string][]byte, error) {
	if f.loaded {
		return f.cachedKv, nil
	}
	kv := make(map[string][]byte)
	sealed, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.cachedKv, f.loaded = kv, true
		return kv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secretstore: read: %w", err)
	}
	plaintext, err := f.unseal(sealed)
	if err != nil {
		return nil, fmt.Errorf("secretstore: decrypt: %w", err)
	}
	encoded := make(map[string]string)
	if err := json.Unmarshal(plaintext, &encoded); err != nil {
		return nil, fmt.Errorf("secretstore: decode: %w", err)
	}
	for k, v := range encoded {
		kv[k] = []byte(v)
	}
	f.cachedKv, f.loaded = kv, true
	return kv, nil
}

func (f *FileStore) persist(kv map[string][]byte) error {
	encoded := make(map[string]string, len(kv))
	for k, v := range kv {
		encoded[k] = string(v)
	}
	plaintext, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("secretstore: encode: %w", err)
	}
	sealed, err := f.aead(plaintext)
	if err != nil {
		return fmt.Errorf("secretstore: encrypt: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("secretstore: write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("secretstore: rename: %w", err)
	}
	f.cachedKv = kv
	return nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := kv[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.load()
	if err != nil {
		return err
	}
	kv[key] = value
	return f.persist(kv)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.load()
	if err != nil {
		return err
	}
	delete(kv, key)
	return f.persist(kv)
}
